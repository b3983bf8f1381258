package imagegen

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func imageServer(t *testing.T, status int, response string, gotReq *GenerateRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/generations" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Errorf("Authorization = %q", auth)
		}
		if gotReq != nil {
			if err := json.NewDecoder(r.Body).Decode(gotReq); err != nil {
				t.Errorf("decoding request: %v", err)
			}
		}
		w.WriteHeader(status)
		w.Write([]byte(response))
	}))
}

func TestClientGenerateDefaults(t *testing.T) {
	var got GenerateRequest
	srv := imageServer(t, http.StatusOK, `{"image_urls":["https://img/1.png"]}`, &got)
	defer srv.Close()

	client := NewClient(srv.URL, "secret", 0, nil)
	urls, err := client.Generate(context.Background(), GenerateRequest{Prompt: "a cat"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(urls) != 1 || urls[0] != "https://img/1.png" {
		t.Errorf("urls = %v", urls)
	}

	if got.Model != DefaultModel {
		t.Errorf("model = %q, want default %q", got.Model, DefaultModel)
	}
	if got.AspectRatio != DefaultAspectRatio {
		t.Errorf("aspect ratio = %q, want default %q", got.AspectRatio, DefaultAspectRatio)
	}
	if got.Temperature != DefaultTemperature {
		t.Errorf("temperature = %v, want default %v", got.Temperature, DefaultTemperature)
	}
}

func TestClientGenerateUpstreamError(t *testing.T) {
	srv := imageServer(t, http.StatusBadGateway, `upstream exploded`, nil)
	defer srv.Close()

	client := NewClient(srv.URL, "secret", 0, nil)
	_, err := client.Generate(context.Background(), GenerateRequest{Prompt: "a cat"})
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error %q should mention status", err)
	}
}

func TestClientGenerateAPIError(t *testing.T) {
	srv := imageServer(t, http.StatusOK, `{"error":"prompt rejected"}`, nil)
	defer srv.Close()

	client := NewClient(srv.URL, "secret", 0, nil)
	_, err := client.Generate(context.Background(), GenerateRequest{Prompt: "a cat"})
	if err == nil || !strings.Contains(err.Error(), "prompt rejected") {
		t.Errorf("error = %v, want upstream message", err)
	}
}

type fakeUploader struct {
	keys map[string]string
	err  error
}

func (f *fakeUploader) UploadImageFromURL(_ context.Context, url string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.keys[url], nil
}

func decodeResult(t *testing.T, content string) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		t.Fatalf("result is not JSON: %v (%q)", err, content)
	}
	return out
}

func TestToolExecute(t *testing.T) {
	srv := imageServer(t, http.StatusOK, `{"image_urls":["https://img/1.png","https://img/2.png"]}`, nil)
	defer srv.Close()

	uploader := &fakeUploader{keys: map[string]string{
		"https://img/1.png": "file-1",
		"https://img/2.png": "", // empty keys are filtered out
	}}
	tool := NewTool(NewClient(srv.URL, "secret", 0, nil), uploader, nil)

	res, err := tool.Execute(context.Background(), json.RawMessage(`{"prompt":"a cat"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected error result: %s", res.Content)
	}

	out := decodeResult(t, res.Content)
	if out["success"] != true {
		t.Error("success flag not set")
	}
	urls := out["imageUrls"].([]any)
	if len(urls) != 2 {
		t.Errorf("imageUrls = %v", urls)
	}
	keys := out["imageKeys"].([]any)
	if len(keys) != 1 || keys[0] != "file-1" {
		t.Errorf("imageKeys = %v, want only non-empty keys", keys)
	}
}

func TestToolExecuteUploadFailureTolerated(t *testing.T) {
	srv := imageServer(t, http.StatusOK, `{"image_urls":["https://img/1.png"]}`, nil)
	defer srv.Close()

	tool := NewTool(NewClient(srv.URL, "secret", 0, nil), &fakeUploader{err: errors.New("denied")}, nil)

	res, err := tool.Execute(context.Background(), json.RawMessage(`{"prompt":"a cat"}`))
	if err != nil || res.IsError {
		t.Fatalf("upload failure must not fail the tool: res=%+v err=%v", res, err)
	}
	out := decodeResult(t, res.Content)
	if _, hasKeys := out["imageKeys"]; hasKeys {
		t.Error("imageKeys should be absent when all uploads fail")
	}
}

func TestToolExecuteMissingPrompt(t *testing.T) {
	tool := NewTool(NewClient("http://unused", "secret", 0, nil), nil, nil)

	res, err := tool.Execute(context.Background(), json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.IsError {
		t.Error("missing prompt should produce an error result")
	}
	out := decodeResult(t, res.Content)
	if out["error"] == "" {
		t.Error("error result should carry a message")
	}
}

func TestToolExecuteGenerationFailure(t *testing.T) {
	srv := imageServer(t, http.StatusOK, `{"image_urls":[]}`, nil)
	defer srv.Close()

	tool := NewTool(NewClient(srv.URL, "secret", 0, nil), nil, nil)

	res, err := tool.Execute(context.Background(), json.RawMessage(`{"prompt":"a cat"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !res.IsError {
		t.Error("empty image list should produce an error result")
	}
}
