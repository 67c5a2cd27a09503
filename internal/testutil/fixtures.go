package testutil

import (
	"time"

	"github.com/lrocampoa/ExpenseTracker/internal/model"
)

// Sample notification bodies shaped like the alerts banks actually send.
const (
	BACTextAlert = "BAC: compra por CRC 15,000.00 en AUTOMERCADO tarjeta terminada en 4321 el 12/03/2024"

	BACHTMLAlert = `<html><body><table>
<tr><td>Comercio:</td><td>UBER TRIP</td></tr>
<tr><td>Ciudad y país:</td><td>SAN JOSE, Costa Rica</td></tr>
<tr><td>Fecha:</td><td>Mar 12, 2024, 18:45</td></tr>
<tr><td>VISA</td><td>************1234</td></tr>
<tr><td>Autorización:</td><td>123456</td></tr>
<tr><td>Referencia:</td><td>407212345678</td></tr>
<tr><td>Tipo de Transacción:</td><td>COMPRA</td></tr>
<tr><td>Monto:</td><td>CRC 4.250,00</td></tr>
</table></body></html>`

	PromericaAlert = "Promerica le informa que su tarjeta **** 9876 fue utilizada en NETFLIX.COM por US$ 15.99 el 05/03/2024 21:10. Referencia 88812"

	NewsletterBody = "Conozca nuestras nuevas tasas de ahorro."
)

// BankSender is the sender address of the BAC alert fixtures.
const BankSender = "notificaciones@baccredomatic.com"

// AlertEvent wraps a notification body as a provider event.
func AlertEvent(id, sender, subject, body string, received time.Time) model.MailEvent {
	return model.MailEvent{
		ProviderMessageID: id,
		ThreadID:          "thread-" + id,
		Sender:            sender,
		Subject:           subject,
		Body:              body,
		ReceivedAt:        received,
	}
}
