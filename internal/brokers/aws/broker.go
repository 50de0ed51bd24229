// Package aws publishes hits to an SQS queue or an SNS topic.
package aws

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snsTypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"edge-gateway/internal/brokers"
	"edge-gateway/internal/brokers/base"
	"edge-gateway/internal/common/errors"
)

// maxBatchEntries is the SQS and SNS limit for one batch call.
const maxBatchEntries = 10

type sqsAPI interface {
	SendMessageBatch(ctx context.Context, in *sqs.SendMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error)
	GetQueueAttributes(ctx context.Context, in *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

type snsAPI interface {
	PublishBatch(ctx context.Context, in *sns.PublishBatchInput, optFns ...func(*sns.Options)) (*sns.PublishBatchOutput, error)
	GetTopicAttributes(ctx context.Context, in *sns.GetTopicAttributesInput, optFns ...func(*sns.Options)) (*sns.GetTopicAttributesOutput, error)
}

type Broker struct {
	*base.BaseBroker
	config *Config
	sqs    sqsAPI
	sns    snsAPI
}

// NewBroker loads the default AWS credential chain, overridden by static
// keys when the config carries them.
func NewBroker(ctx context.Context, config *Config) (*Broker, error) {
	baseBroker, err := base.NewBaseBroker(config.GetType(), config)
	if err != nil {
		return nil, err
	}

	opts := []func(*awsConfig.LoadOptions) error{awsConfig.WithRegion(config.Region)}
	if config.AccessKeyID != "" {
		opts = append(opts, awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			config.AccessKeyID,
			config.SecretAccessKey,
			config.SessionToken,
		)))
	}

	cfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.ConnectionError("failed to load AWS config", err)
	}

	b := &Broker{BaseBroker: baseBroker, config: config}
	if config.QueueURL != "" {
		b.sqs = sqs.NewFromConfig(cfg)
	} else {
		b.sns = sns.NewFromConfig(cfg)
	}
	return b, nil
}

func (b *Broker) Publish(ctx context.Context, messages []*brokers.Message) error {
	var failed int
	for _, chunk := range base.Chunks(messages, maxBatchEntries) {
		n, err := b.publishChunk(ctx, chunk)
		if err != nil {
			return base.PublishError(b.Name(), b.config.GetConnectionString(), err)
		}
		failed += n
	}
	if failed > 0 {
		return base.PublishError(b.Name(), b.config.GetConnectionString(),
			fmt.Errorf("%d of %d entries rejected", failed, len(messages)))
	}
	return nil
}

// publishChunk returns the number of entries AWS rejected.
func (b *Broker) publishChunk(ctx context.Context, chunk []*brokers.Message) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, b.config.Timeout)
	defer cancel()

	if b.sqs != nil {
		entries := make([]sqsTypes.SendMessageBatchRequestEntry, len(chunk))
		for i, msg := range chunk {
			entries[i] = sqsTypes.SendMessageBatchRequestEntry{
				Id:                aws.String(strconv.Itoa(i)),
				MessageBody:       aws.String(string(msg.Body)),
				MessageAttributes: sqsAttributes(msg.Headers),
			}
		}
		out, err := b.sqs.SendMessageBatch(ctx, &sqs.SendMessageBatchInput{
			QueueUrl: aws.String(b.config.QueueURL),
			Entries:  entries,
		})
		if err != nil {
			return 0, err
		}
		return len(out.Failed), nil
	}

	entries := make([]snsTypes.PublishBatchRequestEntry, len(chunk))
	for i, msg := range chunk {
		entries[i] = snsTypes.PublishBatchRequestEntry{
			Id:                aws.String(strconv.Itoa(i)),
			Message:           aws.String(string(msg.Body)),
			MessageAttributes: snsAttributes(msg.Headers),
		}
	}
	out, err := b.sns.PublishBatch(ctx, &sns.PublishBatchInput{
		TopicArn:                   aws.String(b.config.TopicArn),
		PublishBatchRequestEntries: entries,
	})
	if err != nil {
		return 0, err
	}
	return len(out.Failed), nil
}

// Empty header values are dropped; AWS rejects empty attribute values.
func sqsAttributes(headers map[string]string) map[string]sqsTypes.MessageAttributeValue {
	attrs := make(map[string]sqsTypes.MessageAttributeValue, len(headers))
	for k, v := range headers {
		if v == "" {
			continue
		}
		attrs[k] = sqsTypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
	}
	return attrs
}

func snsAttributes(headers map[string]string) map[string]snsTypes.MessageAttributeValue {
	attrs := make(map[string]snsTypes.MessageAttributeValue, len(headers))
	for k, v := range headers {
		if v == "" {
			continue
		}
		attrs[k] = snsTypes.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
	}
	return attrs
}

func (b *Broker) Health(ctx context.Context) error {
	var err error
	if b.sqs != nil {
		_, err = b.sqs.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
			QueueUrl:       aws.String(b.config.QueueURL),
			AttributeNames: []sqsTypes.QueueAttributeName{sqsTypes.QueueAttributeNameApproximateNumberOfMessages},
		})
	} else {
		_, err = b.sns.GetTopicAttributes(ctx, &sns.GetTopicAttributesInput{TopicArn: aws.String(b.config.TopicArn)})
	}
	if err != nil {
		return errors.ConnectionError(b.Name()+" health check failed", err)
	}
	return nil
}

func (b *Broker) Close() error {
	return nil
}
