// Package mailer provides pmscanauth.Mailer implementations: direct SMTP, a
// RabbitMQ queue for an external sender, and a development logger.
package mailer
