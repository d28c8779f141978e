package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

// InfobipClient sends transactional SMS and email through the Infobip HTTP
// API. OTP codes are the only traffic today.
type InfobipClient struct {
	baseURL   string
	apiKey    string
	senderID  string
	fromEmail string
	http      *http.Client
}

func NewInfobipClient(baseURL, apiKey, senderID, fromEmail string) *InfobipClient {
	return &InfobipClient{
		baseURL:   baseURL,
		apiKey:    apiKey,
		senderID:  senderID,
		fromEmail: fromEmail,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

// Configured reports whether credentials are present.
func (c *InfobipClient) Configured() bool {
	return c.baseURL != "" && c.apiKey != ""
}

type infobipSMSRequest struct {
	Messages []infobipSMSMessage `json:"messages"`
}

type infobipSMSMessage struct {
	From         string               `json:"from"`
	Destinations []infobipDestination `json:"destinations"`
	Text         string               `json:"text"`
}

type infobipDestination struct {
	To string `json:"to"`
}

// SendSMS delivers a text message to a phone number.
func (c *InfobipClient) SendSMS(ctx context.Context, phone, text string) error {
	payload := infobipSMSRequest{
		Messages: []infobipSMSMessage{{
			From:         c.senderID,
			Destinations: []infobipDestination{{To: phone}},
			Text:         text,
		}},
	}
	return c.post(ctx, "/sms/2/text/advanced", payload)
}

type infobipEmailRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// SendEmail delivers a plain-text email.
func (c *InfobipClient) SendEmail(ctx context.Context, email, subject, text string) error {
	payload := infobipEmailRequest{
		From:    c.fromEmail,
		To:      email,
		Subject: subject,
		Text:    text,
	}
	return c.post(ctx, "/email/3/send", payload)
}

func (c *InfobipClient) post(ctx context.Context, path string, payload interface{}) error {
	if !c.Configured() {
		return fmt.Errorf("infobip: credentials not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "App "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("infobip: %s returned status %d", path, resp.StatusCode)
	}
	return nil
}

// Infobip is the process-wide messaging client, initialized from main.
var Infobip *InfobipClient

func InitInfobipClient(baseURL, apiKey, senderID, fromEmail string) {
	Infobip = NewInfobipClient(baseURL, apiKey, senderID, fromEmail)
}

// SendOTP dispatches a code over the channel matching the identifier shape.
// Delivery failures are retried by the shared retry policy; the code itself is
// never logged.
func SendOTP(ctx context.Context, identifier, code, method string) bool {
	if Infobip == nil || !Infobip.Configured() {
		log.Println("otp: Infobip credentials not configured; OTP not sent")
		return false
	}

	text := fmt.Sprintf("Your verification code is %s. It will expire in 3 minutes.", code)

	err := DefaultRetryPolicy.Do(ctx, func(ctx context.Context) error {
		if method == "email" {
			return Infobip.SendEmail(ctx, identifier, "Your Verification Code", text)
		}
		return Infobip.SendSMS(ctx, identifier, text)
	}, func(error) bool { return true })
	if err != nil {
		log.Printf("otp: %s delivery failed for %s: %v", method, identifier, err)
		return false
	}
	return true
}
