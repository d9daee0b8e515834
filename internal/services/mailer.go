package services

import (
	"fmt"
	"net/smtp"
	"os"
	"strings"

	"hisui-backend/internal/models"
)

// Mailer sends transactional mail over SMTP. Both call sites treat delivery
// as best-effort, so every error ends up in a log line, never in a response.
type Mailer struct {
	host     string
	port     string
	username string
	password string
	from     string
	appURL   string
}

// NewMailerFromEnv reads SMTP settings from the environment. Returns nil when
// no SMTP host is configured, which disables mail delivery entirely.
func NewMailerFromEnv() *Mailer {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		return nil
	}
	port := os.Getenv("SMTP_PORT")
	if port == "" {
		port = "587"
	}
	appURL := os.Getenv("APP_URL")
	if appURL == "" {
		appURL = "http://localhost:8080"
	}
	return &Mailer{
		host:     host,
		port:     port,
		username: os.Getenv("EMAIL_USER"),
		password: os.Getenv("EMAIL_PASS"),
		from:     fmt.Sprintf("\"Hisui\" <%s>", os.Getenv("EMAIL_USER")),
		appURL:   appURL,
	}
}

func (m *Mailer) send(to, subject, htmlBody string) error {
	var msg strings.Builder
	msg.WriteString("From: " + m.from + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	auth := smtp.PlainAuth("", m.username, m.password, m.host)
	return smtp.SendMail(m.host+":"+m.port, auth, m.username, []string{to}, []byte(msg.String()))
}

// SendOrderConfirmation mails the user a summary of a committed order.
func (m *Mailer) SendOrderConfirmation(user *models.User, order *models.Order) error {
	actionText := "Compra"
	if order.Action == models.ActionSell {
		actionText = "Venda"
	}
	subject := fmt.Sprintf("Confirmação de %s - %s", actionText, order.Ticker())

	var extras strings.Builder
	if order.Fees != nil {
		fmt.Fprintf(&extras, "<li>Taxas: %.2f %s</li>", *order.Fees, order.OrderCurrency)
	}
	if order.TaxAmount != nil {
		fmt.Fprintf(&extras, "<li>Impostos: %.2f %s</li>", *order.TaxAmount, order.OrderCurrency)
	}

	body := fmt.Sprintf(`<html>
<body style="font-family: sans-serif; color: #333;">
  <h2>Olá, %s!</h2>
  <p>Sua ordem de <strong>%s</strong> foi registrada com sucesso.</p>
  <ul>
    <li>Ativo: %s (%s)</li>
    <li>Quantidade: %.8g</li>
    <li>Preço: %.2f %s</li>
    <li>Data de execução: %s</li>
    %s
  </ul>
  <p>Ordem: %s</p>
</body>
</html>`,
		user.Username,
		strings.ToLower(actionText),
		order.Ticker(), order.AssetType,
		order.Amount,
		order.OrderPrice, order.OrderCurrency,
		order.OrderExecutionDate.Format("02/01/2006 15:04"),
		extras.String(),
		order.ID.Hex(),
	)
	return m.send(user.Email, subject, body)
}

// SendVerificationEmail mails the account activation link.
func (m *Mailer) SendVerificationEmail(user *models.User) error {
	verificationURL := fmt.Sprintf("%s/verify-email?token=%s", m.appURL, user.VerificationToken)
	body := fmt.Sprintf(`<html>
<body style="font-family: sans-serif; color: #333;">
  <h2>Olá, %s!</h2>
  <p>Confirme seu email para ativar sua conta:</p>
  <p><a href="%s">Verificar minha conta</a></p>
  <p>O link expira em 24 horas.</p>
</body>
</html>`, user.Username, verificationURL)
	return m.send(user.Email, "Verifique sua conta", body)
}

var _ OrderNotifier = (*Mailer)(nil)
var _ VerificationMailer = (*Mailer)(nil)
