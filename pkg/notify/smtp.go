package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/matzehuels/parcelgrid/pkg/errors"
)

// SMTPConfig holds mail delivery settings. The connection uses implicit
// TLS (SMTPS), usually on port 465.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string // defaults to User
	To       string
}

// DefaultSMTPPort is the SMTPS port.
const DefaultSMTPPort = 465

// SMTPConfigFromEnv reads SMTP_HOST, SMTP_PORT, SMTP_USER, SMTP_PASS,
// SMTP_FROM and SMTP_TO through getenv.
func SMTPConfigFromEnv(getenv func(string) string) (SMTPConfig, error) {
	c := SMTPConfig{
		Host:     getenv("SMTP_HOST"),
		Port:     DefaultSMTPPort,
		User:     getenv("SMTP_USER"),
		Password: getenv("SMTP_PASS"),
		From:     getenv("SMTP_FROM"),
		To:       getenv("SMTP_TO"),
	}
	if v := getenv("SMTP_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 || p > 65535 {
			return SMTPConfig{}, errors.New(errors.ErrCodeInvalidConfig, "invalid SMTP_PORT %q", v)
		}
		c.Port = p
	}
	if c.From == "" {
		c.From = c.User
	}
	return c, nil
}

// Configured reports whether enough is set to attempt delivery.
func (c SMTPConfig) Configured() bool {
	return c.Host != "" && c.From != "" && c.To != ""
}

// SMTPNotifier e-mails each lead as an HTML message.
type SMTPNotifier struct {
	cfg     SMTPConfig
	timeout time.Duration
}

// NewSMTPNotifier returns a mail sink for cfg.
func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	if cfg.Port == 0 {
		cfg.Port = DefaultSMTPPort
	}
	return &SMTPNotifier{cfg: cfg, timeout: 15 * time.Second}
}

func (n *SMTPNotifier) Name() string { return "smtp" }

func (n *SMTPNotifier) Notify(ctx context.Context, l Lead) error {
	msg, err := n.message(l)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	addr := net.JoinHostPort(n.cfg.Host, strconv.Itoa(n.cfg.Port))
	d := tls.Dialer{Config: &tls.Config{ServerName: n.cfg.Host}}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, n.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if n.cfg.User != "" {
		if err := c.Auth(smtp.PlainAuth("", n.cfg.User, n.cfg.Password, n.cfg.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(n.cfg.From); err != nil {
		return fmt.Errorf("smtp mail: %w", err)
	}
	if err := c.Rcpt(n.cfg.To); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	return c.Quit()
}

var leadBody = template.Must(template.New("lead").Parse(`<div style="font-family: Arial, sans-serif; padding: 20px; border: 1px solid #ccc;">
<h2 style="color: #c6a87c;">Новая заявка: {{.Type}}</h2>
<p><strong>Имя:</strong> {{.Name}}</p>
<p><strong>Телефон:</strong> <a href="tel:{{.Phone}}">{{.Phone}}</a></p>
<p><strong>Участок:</strong> {{.PlotID}}</p>
<hr>
<p style="color: #666; font-size: 12px;">Это письмо отправлено автоматически с сайта.</p>
</div>
`))

// message renders the RFC 5322 message for a lead.
func (n *SMTPNotifier) message(l Lead) ([]byte, error) {
	var body bytes.Buffer
	if err := leadBody.Execute(&body, l); err != nil {
		return nil, fmt.Errorf("render lead: %w", err)
	}

	var b bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&b, "%s: %s\r\n", k, v) }
	header("From", n.cfg.From)
	header("To", n.cfg.To)
	header("Subject", mime.QEncoding.Encode("utf-8", "Новая заявка с сайта: "+l.Name))
	header("Date", l.ReceivedAt.Format(time.RFC1123Z))
	header("Message-ID", "<"+l.ID+"@parcelgrid>")
	header("MIME-Version", "1.0")
	header("Content-Type", `text/html; charset="utf-8"`)
	header("Content-Transfer-Encoding", "8bit")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body.String(), "\n", "\r\n"))
	return b.Bytes(), nil
}

var _ Notifier = (*SMTPNotifier)(nil)
