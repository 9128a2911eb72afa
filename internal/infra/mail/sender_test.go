package mail

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/travel-crm-go/internal/domain"
)

func TestRenderNotification(t *testing.T) {
	subject, html, err := RenderNotification(domain.NotificationEvent{
		Type:  domain.NotifDocumentExpiring,
		Title: "דרכון עומד לפוג",
		Body:  "<b>5 ימים</b>",
	}, "דנה")
	require.NoError(t, err)

	assert.Equal(t, "דרכון עומד לפוג", subject)
	assert.Contains(t, html, "שלום דנה")
	assert.Contains(t, html, domain.NotificationTypes[domain.NotifDocumentExpiring].Label)
	assert.Contains(t, html, "&lt;b&gt;5 ימים&lt;/b&gt;", "body must be escaped")
}

func TestEmailSender_Message(t *testing.T) {
	s := NewEmailSender("smtp.example.com", 587, "user", "pass", "crm@example.com")
	m := s.message("agent@example.com", "subject", "<p>hi</p>")

	assert.Equal(t, []string{"crm@example.com"}, m.GetHeader("From"))
	assert.Equal(t, []string{"agent@example.com"}, m.GetHeader("To"))

	var buf bytes.Buffer
	_, err := m.WriteTo(&buf)
	require.NoError(t, err)
	assert.True(t, strings.Contains(buf.String(), "text/html"))
}
