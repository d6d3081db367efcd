package emailsvc

import (
	"encoding/json"
	"net/mail"
	"testing"

	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eduva/eduva/core"
)

func preparedBody(t *testing.T, msg core.EmailMessage) map[string]interface{} {
	t.Helper()
	conf := core.LoadConfig("test")
	svc := NewSendgridService(conf, nil)

	body := make(map[string]interface{})
	require.NoError(t, json.Unmarshal(sgmail.GetRequestBody(svc.prepare(msg)), &body))
	return body
}

func TestSendgridService_prepare(t *testing.T) {
	to := []mail.Address{{Name: "Guru", Address: "guru@test.id"}}

	t.Run("plain message", func(t *testing.T) {
		body := preparedBody(t, core.EmailMessage{To: to, Subject: "Hi", Body: "hello"})
		assert.NotContains(t, body, "categories")
		assert.NotContains(t, body, "tracking_settings")

		pers := body["personalizations"].([]interface{})[0].(map[string]interface{})
		assert.Equal(t, "[Eduva] Hi", pers["subject"])
	})

	t.Run("password reset", func(t *testing.T) {
		body := preparedBody(t, core.EmailMessage{
			To:              to,
			Subject:         "Password reset",
			Body:            "https://eduva.test/password-reset/NDI/abc",
			Category:        "password_reset",
			DisableTracking: true,
		})
		assert.Equal(t, []interface{}{"eduva", "password_reset"}, body["categories"])

		tracking := body["tracking_settings"].(map[string]interface{})
		click := tracking["click_tracking"].(map[string]interface{})
		assert.Equal(t, false, click["enable"])
	})
}
