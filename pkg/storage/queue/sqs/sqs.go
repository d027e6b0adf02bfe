package sqs

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/keytune/keytune/pkg/util"
	"github.com/rs/zerolog/log"
)

// Queue carries page views through SQS so several instances can share one
// worker pool.
type Queue struct {
	URL             string `mapstructure:"url"`
	AccessKeyId     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`

	client *sqs.Client
}

func (q *Queue) timeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(q.TimeoutSeconds)*time.Second)
}

func (q *Queue) Enqueue(message []byte) error {
	ctx, cancel := q.timeout()
	defer cancel()

	_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.URL),
		MessageBody: aws.String(string(message)),
	})
	log.Trace().Str("sqs_url", q.URL).Err(err).Msg("Enqueue")
	return err
}

func (q *Queue) receive() (types.Message, bool) {
	ctx, cancel := q.timeout()
	defer cancel()

	res, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.URL),
		MaxNumberOfMessages: 1,
	})
	if err != nil {
		log.Error().Err(err).Msg("Unable to poll SQS")
		return types.Message{}, false
	}
	for _, msg := range res.Messages {
		if msg.Body != nil {
			return msg, true
		}
	}
	return types.Message{}, false
}

func (q *Queue) delete(receiptHandle *string) error {
	ctx, cancel := q.timeout()
	defer cancel()

	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.URL),
		ReceiptHandle: receiptHandle,
	})
	return err
}

// Dequeue deletes the message as soon as it is received. A page view lost
// to a crashing worker is acceptable.
func (q *Queue) Dequeue() ([]byte, bool) {
	msg, ok := q.receive()
	if !ok {
		return nil, false
	}

	if err := q.delete(msg.ReceiptHandle); err != nil {
		log.Error().Err(err).Str("sqs_receipt_handle", aws.ToString(msg.ReceiptHandle)).Msg("Unable to delete message from SQS")
	}

	return []byte(*msg.Body), true
}

// NewQueue returns a new initialized Queue
func NewQueue(c map[string]any) (*Queue, error) {
	q, err := util.ConfigToStruct[Queue](c)
	if err != nil {
		return nil, err
	}
	if q.Region == "" {
		q.Region = "us-east-1"
	}
	if q.TimeoutSeconds <= 0 {
		q.TimeoutSeconds = 10
	}

	appCreds := aws.NewCredentialsCache(credentials.NewStaticCredentialsProvider(q.AccessKeyId, q.SecretAccessKey, ""))

	cfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(q.Region),
		config.WithCredentialsProvider(appCreds),
	)
	if err != nil {
		return nil, err
	}

	q.client = sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if q.Endpoint != "" {
			o.BaseEndpoint = aws.String(q.Endpoint)
		}
	})

	return q, nil
}
