package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/charmbracelet/log"

	"breakupguide/internal/models"
)

const appName = "Breakup Guide"

// sesAPI is the slice of the SES client the service calls
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// EmailService sends account and purchase emails through Amazon SES
type EmailService struct {
	client     sesAPI
	fromEmail  string
	fromName   string
	appBaseURL string
	enabled    bool
	logger     *log.Logger
}

// NewEmailService connects to SES. An empty fromEmail yields a disabled
// service that logs and skips every send.
func NewEmailService(ctx context.Context, awsRegion, fromEmail, fromName, appBaseURL string, logger *log.Logger) (*EmailService, error) {
	if logger == nil {
		logger = log.Default()
	}
	logger = logger.With("component", "email")

	if fromEmail == "" {
		logger.Info("email service disabled: no from address configured")
		return &EmailService{logger: logger}, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(awsRegion))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info("email service enabled", "from", fromEmail, "region", awsRegion)
	return newEmailService(sesv2.NewFromConfig(cfg), fromEmail, fromName, appBaseURL, logger), nil
}

func newEmailService(client sesAPI, fromEmail, fromName, appBaseURL string, logger *log.Logger) *EmailService {
	if logger == nil {
		logger = log.Default().With("component", "email")
	}
	return &EmailService{
		client:     client,
		fromEmail:  fromEmail,
		fromName:   fromName,
		appBaseURL: strings.TrimRight(appBaseURL, "/"),
		enabled:    true,
		logger:     logger,
	}
}

func (s *EmailService) IsEnabled() bool {
	return s != nil && s.enabled
}

// SendWelcomeEmail greets a newly registered user
func (s *EmailService) SendWelcomeEmail(ctx context.Context, toEmail, toName string) error {
	if !s.IsEnabled() {
		s.logger.Debug("skipping welcome email (service disabled)", "to", toEmail)
		return nil
	}

	chaptersLink := s.appBaseURL + "/chapters"
	subject := "Welcome to " + appName
	body := fmt.Sprintf(`<p>Hi %s,</p>
<p>Thanks for joining %s. Work through the chapters at your own pace; your progress is saved as you go.</p>
<p style="text-align: center;"><a href="%s" class="button">Start the chapters</a></p>`,
		html.EscapeString(toName), appName, chaptersLink)
	text := fmt.Sprintf("Hi %s,\n\nThanks for joining %s. Work through the chapters at your own pace; your progress is saved as you go.\n\nStart here: %s\n",
		toName, appName, chaptersLink)

	return s.sendEmail(ctx, toEmail, subject, wrapHTML("Welcome!", body), text+footerText)
}

// SendReceiptEmail confirms a recorded purchase and links to the library
func (s *EmailService) SendReceiptEmail(ctx context.Context, toEmail, toName string, order *models.Order) error {
	if !s.IsEnabled() {
		s.logger.Debug("skipping receipt email (service disabled)", "to", toEmail, "order", order.ID)
		return nil
	}

	libraryLink := s.appBaseURL + "/library"
	total := fmt.Sprintf("%s %s", models.FormatAmount(order.AmountCents), order.Currency)

	var rows, lines strings.Builder
	for _, item := range order.Items {
		fmt.Fprintf(&rows, "<li>%s</li>\n", html.EscapeString(item.Title))
		fmt.Fprintf(&lines, "  - %s\n", item.Title)
	}

	subject := fmt.Sprintf("Your %s receipt (%s)", appName, order.ID)
	body := fmt.Sprintf(`<p>Hi %s,</p>
<p>Thank you for your purchase. %s</p>
<ul>
%s</ul>
<p><strong>Total: %s</strong><br>Order: %s</p>
<p style="text-align: center;"><a href="%s" class="button">Open your library</a></p>`,
		html.EscapeString(toName), html.EscapeString(order.Description), rows.String(),
		html.EscapeString(total), html.EscapeString(order.ID), libraryLink)
	text := fmt.Sprintf("Hi %s,\n\nThank you for your purchase. %s\n\n%s\nTotal: %s\nOrder: %s\n\nOpen your library: %s\n",
		toName, order.Description, lines.String(), total, order.ID, libraryLink)

	return s.sendEmail(ctx, toEmail, subject, wrapHTML("Thank you!", body), text+footerText)
}

const footerText = "\n---\nThis is an automated email from " + appName + ". Please do not reply.\n"

func wrapHTML(heading, content string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<style>
		body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
		.container { max-width: 600px; margin: 0 auto; padding: 20px; }
		.header { background-color: #3b82f6; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
		.content { background-color: #f9f9f9; padding: 30px; border-radius: 0 0 5px 5px; }
		.button { display: inline-block; padding: 12px 30px; background-color: #3b82f6; color: white; text-decoration: none; border-radius: 5px; margin: 20px 0; }
		.footer { text-align: center; margin-top: 20px; font-size: 12px; color: #666; }
	</style>
</head>
<body>
	<div class="container">
		<div class="header"><h1>%s</h1></div>
		<div class="content">
%s
		</div>
		<div class="footer"><p>This is an automated email from %s. Please do not reply.</p></div>
	</div>
</body>
</html>
`, heading, content, appName)
}

func (s *EmailService) sendEmail(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	fromAddress := s.fromEmail
	if s.fromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")},
					Text: &types.Content{Data: aws.String(textBody), Charset: aws.String("UTF-8")},
				},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email to %s: %w", toEmail, err)
	}

	s.logger.Info("email sent", "to", toEmail, "subject", subject, "message_id", aws.ToString(result.MessageId))
	return nil
}
