package integration

import (
	"context"
	"testing"
	"time"

	"github.com/lessonworks/sage/pkg/chat"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestIntegration(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Chat Integration Suite")
}

var _ = Describe("Streaming chat", func() {
	var (
		backend *testBackend
		session *chat.Session
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		backend = newTestBackend()
		session = chat.NewSession(chat.SessionConfig{
			ServerURL:    backend.URL(),
			DeploymentID: "dep-1",
			Token:        "good-token",
			Streaming:    true,
		})
		session.Start(ctx)
	})

	AfterEach(func() {
		session.Close()
		backend.Close()
	})

	It("should stream a greeting end to end", func() {
		Expect(session.Send(ctx, "Hello")).To(Succeed())

		// The reply is assembled from three chunks and then finalized
		Eventually(func() bool {
			msgs := session.Messages()
			return len(msgs) == 2 && msgs[1].IsAssistant() && !msgs[1].IsStreaming
		}, 2*time.Second, 5*time.Millisecond).Should(BeTrue())

		msgs := session.Messages()
		Expect(msgs[0].Content).To(Equal("Hello"))
		Expect(msgs[1].Content).To(Equal("Hi there!"))
		Expect(msgs[1].Sources).To(Equal([]string{"guide.pdf"}))
		Expect(backend.RestChats()).To(BeZero())
	})

	It("should create a conversation before the first message", func() {
		Expect(session.Send(ctx, "Hello")).To(Succeed())

		Expect(backend.Created()).To(Equal(1))
		Expect(session.ConversationID()).ToNot(BeNil())
		Expect(*session.ConversationID()).To(Equal(int64(7)))
	})

	It("should not create a second conversation for later messages", func() {
		Expect(session.Send(ctx, "first")).To(Succeed())
		Eventually(func() int {
			return len(session.Messages())
		}, 2*time.Second, 5*time.Millisecond).Should(Equal(2))

		Expect(session.Send(ctx, "second")).To(Succeed())
		Eventually(func() int {
			return len(session.Messages())
		}, 2*time.Second, 5*time.Millisecond).Should(Equal(4))

		Expect(backend.Created()).To(Equal(1))
	})
})

var _ = Describe("Fallback chat", func() {
	var (
		backend *testBackend
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		backend = newTestBackend()
	})

	AfterEach(func() {
		backend.Close()
	})

	It("should answer over request/response when the handshake is rejected", func() {
		session := chat.NewSession(chat.SessionConfig{
			ServerURL:    backend.URL(),
			DeploymentID: "dep-1",
			Token:        "wrong-token",
			Streaming:    true,
		})
		defer session.Close()
		session.Start(ctx)

		Expect(session.Send(ctx, "Hello")).To(Succeed())

		msgs := session.Messages()
		Expect(msgs).To(HaveLen(2))
		Expect(msgs[1].Content).To(Equal("Hi there!"))
		Expect(backend.RestChats()).To(Equal(1))
	})

	It("should answer over request/response when streaming is disabled", func() {
		session := chat.NewSession(chat.SessionConfig{
			ServerURL:    backend.URL(),
			DeploymentID: "dep-1",
			Token:        "good-token",
			Streaming:    false,
		})
		defer session.Close()
		session.Start(ctx)

		Expect(session.Send(ctx, "Hello")).To(Succeed())

		msgs := session.Messages()
		Expect(msgs).To(HaveLen(2))
		Expect(msgs[1].Content).To(Equal("Hi there!"))
		Expect(msgs[1].IsStreaming).To(BeFalse())
		Expect(backend.RestChats()).To(Equal(1))
	})
})
