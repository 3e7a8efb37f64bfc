// internal/notification/channels/sns.go
package channels

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNSAPI is the subset of the SNS client the push sender uses.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSPushSender publishes to SNS mobile platform endpoints; tokens are endpoint ARNs.
type SNSPushSender struct {
	client SNSAPI
}

func NewSNSPushSender(client SNSAPI) *SNSPushSender {
	return &SNSPushSender{client: client}
}

func (s *SNSPushSender) Send(ctx context.Context, token string, payload PushPayload) error {
	message, err := snsMessage(payload)
	if err != nil {
		return err
	}

	_, err = s.client.Publish(ctx, &sns.PublishInput{
		TargetArn:        aws.String(token),
		Message:          aws.String(message),
		MessageStructure: aws.String("json"),
	})
	if err != nil {
		return fmt.Errorf("sns publish: %w", err)
	}
	return nil
}

// snsMessage builds the per-platform JSON envelope SNS expects with MessageStructure=json.
func snsMessage(p PushPayload) (string, error) {
	gcm, err := json.Marshal(map[string]interface{}{
		"notification": map[string]string{"title": p.Title, "body": p.Body},
		"data":         p.Data,
		"priority":     androidPriority(p),
	})
	if err != nil {
		return "", fmt.Errorf("encode gcm payload: %w", err)
	}

	apnsBody := map[string]interface{}{
		"aps": map[string]interface{}{
			"alert": map[string]string{"title": p.Title, "body": p.Body},
			"sound": "default",
		},
	}
	for k, v := range p.Data {
		apnsBody[k] = v
	}
	apns, err := json.Marshal(apnsBody)
	if err != nil {
		return "", fmt.Errorf("encode apns payload: %w", err)
	}

	envelope, err := json.Marshal(map[string]string{
		"default":      p.Body,
		"GCM":          string(gcm),
		"APNS":         string(apns),
		"APNS_SANDBOX": string(apns),
	})
	if err != nil {
		return "", fmt.Errorf("encode sns envelope: %w", err)
	}
	return string(envelope), nil
}

func androidPriority(p PushPayload) string {
	if p.Priority == "high" || p.Priority == "urgent" {
		return "high"
	}
	return "normal"
}
