package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/sony/gobreaker/v2"

	"certflow/internal/domain"
)

// SESConfig holds configuration for AWS SES.
type SESConfig struct {
	Region             string
	AccessKeyID        string
	SecretAccessKey    string
	InsecureSkipVerify bool
}

// MailerConfig holds configuration for creating a mailer.
type MailerConfig struct {
	Provider    string
	FromAddress string
	FromName    string
	SES         SESConfig
}

// NewMailer creates a mailer from config. Provider "ses" uses AWS SES; "noop" or unknown uses a no-op mailer.
func NewMailer(config MailerConfig) (domain.Mailer, error) {
	switch config.Provider {
	case "ses":
		sesConfig := config.SES
		if sesConfig.InsecureSkipVerify {
			log.Printf("[MAILER] WARNING: TLS certificate verification is disabled for SES. Use only in development.")
		}
		httpClient := &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: sesConfig.InsecureSkipVerify,
					MinVersion:         tls.VersionTLS12,
				},
			},
		}
		awsCfg := aws.Config{
			Region: sesConfig.Region,
			Credentials: aws.NewCredentialsCache(
				credentials.NewStaticCredentialsProvider(
					sesConfig.AccessKeyID,
					sesConfig.SecretAccessKey,
					"",
				),
			),
			HTTPClient: httpClient,
		}
		client := ses.NewFromConfig(awsCfg)
		return &sesMailer{
			client:      client,
			breaker:     newSendBreaker(),
			fromAddress: config.FromAddress,
			fromName:    config.FromName,
		}, nil
	case "noop":
		return &noopMailer{}, nil
	default:
		log.Printf("[MAILER] Unknown email provider %q, using noop", config.Provider)
		return &noopMailer{}, nil
	}
}

// newSendBreaker trips after 5 consecutive failures and probes again after
// 30 seconds, so a provider outage fails fast instead of stalling every
// participant in a batch.
func newSendBreaker() *gobreaker.CircuitBreaker[string] {
	return gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:    "ses-send",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

type sesMailer struct {
	client      *ses.Client
	breaker     *gobreaker.CircuitBreaker[string]
	fromAddress string
	fromName    string
}

func (s *sesMailer) source() string {
	if s.fromName != "" {
		return fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)
	}
	return s.fromAddress
}

func (s *sesMailer) Send(to, subject, html string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(s.source()),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data:    aws.String(html),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}
	messageID, err := s.breaker.Execute(func() (string, error) {
		result, err := s.client.SendEmail(context.Background(), input)
		if err != nil {
			return "", err
		}
		return aws.ToString(result.MessageId), nil
	})
	if err != nil {
		return fmt.Errorf("failed to send email via SES: %w", err)
	}
	log.Printf("[MAILER] Email sent via SES. MessageID: %s", messageID)
	return nil
}

// SendWithAttachment sends a multipart MIME message through the SES raw
// path, which is the only SES API that supports attachments.
func (s *sesMailer) SendWithAttachment(to, subject, html, attachmentName, attachmentPath string) error {
	raw, err := buildRawMessage(s.source(), to, subject, html, attachmentName, attachmentPath)
	if err != nil {
		return err
	}
	input := &ses.SendRawEmailInput{
		Source:       aws.String(s.source()),
		Destinations: []string{to},
		RawMessage: &types.RawMessage{
			Data: raw,
		},
	}
	messageID, err := s.breaker.Execute(func() (string, error) {
		result, err := s.client.SendRawEmail(context.Background(), input)
		if err != nil {
			return "", err
		}
		return aws.ToString(result.MessageId), nil
	})
	if err != nil {
		return fmt.Errorf("failed to send raw email via SES: %w", err)
	}
	log.Printf("[MAILER] Email with attachment sent via SES. MessageID: %s", messageID)
	return nil
}

// buildRawMessage assembles a multipart/mixed MIME message with an HTML
// body part and one base64-encoded attachment.
func buildRawMessage(from, to, subject, html, attachmentName, attachmentPath string) ([]byte, error) {
	payload, err := os.ReadFile(attachmentPath)
	if err != nil {
		return nil, fmt.Errorf("read attachment %s: %w", attachmentPath, err)
	}
	if attachmentName == "" {
		attachmentName = filepath.Base(attachmentPath)
	}

	const boundary = "certflow-mixed-boundary"
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", subject)
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=\"%s\"\r\n\r\n", boundary)

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	buf.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	buf.WriteString("Content-Transfer-Encoding: 7bit\r\n\r\n")
	buf.WriteString(html)
	buf.WriteString("\r\n\r\n")

	fmt.Fprintf(&buf, "--%s\r\n", boundary)
	buf.WriteString("Content-Type: application/pdf\r\n")
	buf.WriteString("Content-Transfer-Encoding: base64\r\n")
	fmt.Fprintf(&buf, "Content-Disposition: attachment; filename=\"%s\"\r\n\r\n", attachmentName)

	encoded := base64.StdEncoding.EncodeToString(payload)
	// RFC 2045 line length limit.
	for len(encoded) > 76 {
		buf.WriteString(encoded[:76])
		buf.WriteString("\r\n")
		encoded = encoded[76:]
	}
	buf.WriteString(encoded)
	buf.WriteString("\r\n")
	fmt.Fprintf(&buf, "--%s--\r\n", boundary)

	return buf.Bytes(), nil
}

type noopMailer struct{}

func (n *noopMailer) Send(to, subject, html string) error {
	log.Println("[MAILER] Email would be sent (noop)", "to", to, "subject", subject)
	return nil
}

func (n *noopMailer) SendWithAttachment(to, subject, html, attachmentName, attachmentPath string) error {
	log.Println("[MAILER] Email with attachment would be sent (noop)", "to", to, "attachment", attachmentName)
	return nil
}
