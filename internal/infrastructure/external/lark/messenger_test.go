package lark

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/paydesk/settlement-engine/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeMessages struct {
	calls int
	resp  *larkim.CreateMessageResp
	err   error
}

func (f *fakeMessages) Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error) {
	f.calls++
	return f.resp, f.err
}

func okResponse() *larkim.CreateMessageResp {
	id := "om_123"
	return &larkim.CreateMessageResp{Data: &larkim.CreateMessageRespData{MessageId: &id}}
}

func TestTextMessageBody(t *testing.T) {
	body, err := textMessageBody("ou_abc", "Payment Received", "Payment of \"100.00\" received")
	require.NoError(t, err)
	require.NotNil(t, body.ReceiveId)
	require.NotNil(t, body.MsgType)
	require.NotNil(t, body.Content)

	assert.Equal(t, "ou_abc", *body.ReceiveId)
	assert.Equal(t, "text", *body.MsgType)

	var content map[string]string
	require.NoError(t, json.Unmarshal([]byte(*body.Content), &content))
	assert.Equal(t, "Payment Received\nPayment of \"100.00\" received", content["text"])
}

func TestMessenger_Send(t *testing.T) {
	fake := &fakeMessages{resp: okResponse()}
	m := &Messenger{messages: fake, logger: zap.NewNop()}

	err := m.Send(context.Background(), &entity.User{ID: 3, LarkOpenID: "ou_abc"}, "Payment Received", "body")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls)
}

func TestMessenger_SendFailures(t *testing.T) {
	ctx := context.Background()
	user := &entity.User{ID: 3, LarkOpenID: "ou_abc"}

	unused := &fakeMessages{resp: okResponse()}
	m := &Messenger{messages: unused, logger: zap.NewNop()}
	assert.Error(t, m.Send(ctx, &entity.User{ID: 4}, "t", "b"), "missing open_id")
	assert.Equal(t, 0, unused.calls)

	m = &Messenger{messages: &fakeMessages{err: errors.New("timeout")}, logger: zap.NewNop()}
	assert.Error(t, m.Send(ctx, user, "t", "b"))

	failed := okResponse()
	failed.Code = 230002
	failed.Msg = "bot is not in chat"
	m = &Messenger{messages: &fakeMessages{resp: failed}, logger: zap.NewNop()}
	err := m.Send(ctx, user, "t", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "230002")
}

func TestLogSender_Send(t *testing.T) {
	s := NewLogSender(zap.NewNop())
	assert.NoError(t, s.Send(context.Background(), &entity.User{ID: 1}, "t", "b"))
	assert.Error(t, s.Send(context.Background(), nil, "t", "b"))
}
