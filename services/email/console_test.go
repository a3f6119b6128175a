package emailsvc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/slopeside/core"
	appfs "github.com/trezcool/slopeside/fs"
	logsvc "github.com/trezcool/slopeside/services/logger"
)

func TestConsoleServiceMock_templates(t *testing.T) {
	ClearSentMessages()
	conf := core.NewTestConfig()
	svc := NewConsoleServiceMock(conf, core.NewEmailRenderer(conf, appfs.FS), logsvc.NewDiscard())

	msg := testMessage()
	msg.BodyStr = ""
	msg.TemplateName = "welcome"
	msg.Locale = "fr"
	msg.TemplateData = map[string]interface{}{"Name": "Jane"}
	svc.SendMessages(msg)

	sent := SentMessages()
	require.Len(t, sent, 1)
	assert.NotEmpty(t, sent[0].TextContent)
	assert.NotEmpty(t, sent[0].HTMLContent)
}

func TestConsoleServiceMock_skipsEmpty(t *testing.T) {
	ClearSentMessages()
	conf := core.NewTestConfig()
	svc := NewConsoleServiceMock(conf, core.NewEmailRenderer(conf, appfs.FS), logsvc.NewDiscard())

	svc.SendMessages(&core.EmailMessage{Subject: "no recipients", BodyStr: "hi"})
	assert.Empty(t, SentMessages())
}
