package service

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opengate/api/internal/model"
)

func TestSignatureRoundTrip(t *testing.T) {
	s := NewWebhookService(nil)
	payload := []byte(`{"event_id":"abc","event_type":"access.check_in"}`)

	sig := s.GenerateSignature(payload, "1717228800", "s3cret")
	assert.Len(t, sig, 64)

	assert.True(t, s.VerifySignature(payload, "1717228800", sig, "s3cret"))
	assert.False(t, s.VerifySignature(payload, "1717228800", sig, "wrong"))
	assert.False(t, s.VerifySignature(payload, "1717228801", sig, "s3cret"))
	assert.False(t, s.VerifySignature([]byte(`{}`), "1717228800", sig, "s3cret"))
}

func TestSignatureIsDeterministic(t *testing.T) {
	s := NewWebhookService(nil)
	payload := []byte(`{"a":1}`)
	assert.Equal(t,
		s.GenerateSignature(payload, "100", "k"),
		s.GenerateSignature(payload, "100", "k"))
}

func TestSubscribed(t *testing.T) {
	w := &model.Webhook{Events: pq.StringArray{string(model.WebhookEventCheckIn)}}
	assert.True(t, subscribed(w, string(model.WebhookEventCheckIn)))
	assert.False(t, subscribed(w, string(model.WebhookEventCheckOut)))

	all := &model.Webhook{Events: pq.StringArray{string(model.WebhookEventAll)}}
	assert.True(t, all.Events != nil)
	assert.True(t, subscribed(all, string(model.WebhookEventCheckOut)))
	assert.True(t, subscribed(all, string(model.WebhookEventIncidentCreated)))

	none := &model.Webhook{}
	assert.False(t, subscribed(none, string(model.WebhookEventCheckIn)))
}

func TestSendSignsAndPosts(t *testing.T) {
	s := NewWebhookService(nil)
	payload := []byte(`{"event_id":"evt1"}`)

	var gotBody []byte
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotHeaders = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	webhook := &model.Webhook{
		URL:     srv.URL,
		Secret:  "s3cret",
		Timeout: 5,
	}

	success, status, _, err := s.send(webhook, "access.check_in", "evt1", payload)
	require.NoError(t, err)
	assert.True(t, success)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, payload, gotBody)

	assert.Equal(t, "access.check_in", gotHeaders.Get(WebhookEventHeader))
	assert.Equal(t, "evt1", gotHeaders.Get(WebhookIDHeader))

	timestamp := gotHeaders.Get(WebhookTimestampHeader)
	require.NotEmpty(t, timestamp)
	assert.True(t, s.VerifySignature(gotBody, timestamp, gotHeaders.Get(WebhookSignatureHeader), "s3cret"))
}

func TestSendReportsFailureStatus(t *testing.T) {
	s := NewWebhookService(nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	success, status, _, err := s.send(&model.Webhook{URL: srv.URL, Timeout: 5}, "test", "evt2", []byte(`{}`))
	require.NoError(t, err)
	assert.False(t, success)
	assert.Equal(t, http.StatusBadGateway, status)
}

func TestSendOmitsSignatureWithoutSecret(t *testing.T) {
	s := NewWebhookService(nil)

	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(WebhookSignatureHeader)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	success, _, _, err := s.send(&model.Webhook{URL: srv.URL, Timeout: 5}, "test", "evt3", []byte(`{}`))
	require.NoError(t, err)
	assert.True(t, success)
	assert.Empty(t, gotSig)
}
