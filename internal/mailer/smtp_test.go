package mailer_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bdougie/firewatch/internal/alert"
	"github.com/bdougie/firewatch/internal/mailer"
	"github.com/smartystreets/goconvey/convey"
)

func TestBuildMessage(t *testing.T) {
	convey.Convey("Given an alert message", t, func() {
		msg := alert.Message{
			From:           "cam@example.com",
			To:             "ops@example.com",
			Subject:        "URGENT: Fire in Building A",
			Body:           "Call 101 immediately.",
			Attachment:     []byte{0xFF, 0xD8, 0xFF, 0xD9},
			AttachmentName: alert.AttachmentName,
		}

		convey.Convey("The MIME output carries headers, body and the attachment", func() {
			m, err := mailer.BuildMessage(msg)
			convey.So(err, convey.ShouldBeNil)

			var buf bytes.Buffer
			_, err = m.WriteTo(&buf)
			convey.So(err, convey.ShouldBeNil)

			out := buf.String()
			convey.So(strings.Contains(out, "URGENT: Fire in Building A"), convey.ShouldBeTrue)
			convey.So(strings.Contains(out, "ops@example.com"), convey.ShouldBeTrue)
			convey.So(strings.Contains(out, "Call 101 immediately."), convey.ShouldBeTrue)
			convey.So(strings.Contains(out, "fire_alert.jpg"), convey.ShouldBeTrue)
			convey.So(strings.Contains(out, "image/jpeg"), convey.ShouldBeTrue)
		})

		convey.Convey("An invalid sender is rejected", func() {
			msg.From = "not an address"
			_, err := mailer.BuildMessage(msg)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestSendFailure(t *testing.T) {
	convey.Convey("Given a transport pointing at a closed port", t, func() {
		transport := mailer.New(mailer.Config{
			Host:     "127.0.0.1",
			Port:     1,
			Username: "cam@example.com",
			Password: "secret",
			Timeout:  time.Second,
		})

		convey.Convey("Sending fails with a transport error instead of panicking", func() {
			err := transport.SendWithAttachment(context.Background(), alert.Message{
				From:       "cam@example.com",
				To:         "ops@example.com",
				Subject:    "Fire",
				Body:       "b",
				Attachment: []byte{1},
			})
			convey.So(errors.Is(err, alert.ErrTransport), convey.ShouldBeTrue)
		})
	})
}
