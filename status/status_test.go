package status

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterPostsLines(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Post("Started Server..")
	w.Post("Client Connected on Socket: 3\n")

	assert.Equal(t, "Started Server..\nClient Connected on Socket: 3\n", buf.String())
}

func TestChanDropsWhenFull(t *testing.T) {
	c := NewChan(1)
	c.Post("first")
	c.Post("second")

	assert.Equal(t, "first", <-c.C)
	assert.Equal(t, 1, c.Dropped())
}

func TestMultiFansOut(t *testing.T) {
	a, b := NewChan(2), NewChan(2)
	Multi{a, nil, b}.Post("Disconnected..")

	assert.Equal(t, "Disconnected..", <-a.C)
	assert.Equal(t, "Disconnected..", <-b.C)
}

func TestLoggerUsesInfo(t *testing.T) {
	logger, hook := test.NewNullLogger()
	l := &Logger{Entry: logrus.NewEntry(logger).WithField("component", "server")}

	l.Post("Shut Down Server..")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "Shut Down Server..", entry.Message)
	assert.Equal(t, "server", entry.Data["component"])
}

func TestOrDefaultsToDiscard(t *testing.T) {
	assert.IsType(t, Discard{}, Or(nil))
	c := NewChan(1)
	assert.Same(t, c, Or(c))
}
