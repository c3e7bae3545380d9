package artifact_test

import (
	"context"
	"net/url"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/veraproof/verification-core/internal/artifact"
)

func TestPutVideo_WritesAndSigns(t *testing.T) {
	dir := t.TempDir()
	retention := artifact.NewRetention(dir)
	sink := artifact.NewLocalSink(dir, []byte("signing-secret"), retention)

	key, err := sink.PutVideo(context.Background(), "tenant-1", "session-1", []byte("fake-video-bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "tenant-1/sessions/session-1/video.webm" {
		t.Errorf("unexpected key: %s", key)
	}

	url, err := sink.Sign(context.Background(), key, time.Hour)
	if err != nil {
		t.Fatalf("unexpected sign error: %v", err)
	}
	if !strings.Contains(url, "sig=") {
		t.Errorf("expected signed url, got %s", url)
	}
}

func TestPutVideo_DegradesWhenBaseDirUnwritable(t *testing.T) {
	// Point at a path that can't be created (a file masquerading as a dir).
	blocker := t.TempDir() + "/blocker"
	os.WriteFile(blocker, []byte("x"), 0640)

	sink := artifact.NewLocalSink(blocker, []byte("secret"), nil)
	key, err := sink.PutVideo(context.Background(), "tenant-1", "session-1", []byte("data"))
	if err != nil {
		t.Fatalf("degraded mode must not return an error, got %v", err)
	}
	if !strings.HasPrefix(key, artifact.DegradedKeyPrefix) {
		t.Errorf("expected degraded key prefix, got %s", key)
	}

	if _, err := sink.Sign(context.Background(), key, time.Hour); err == nil {
		t.Error("expected signing a degraded key to fail")
	}
}

func TestVerifySignature_RejectsExpired(t *testing.T) {
	dir := t.TempDir()
	sink := artifact.NewLocalSink(dir, []byte("signing-secret"), artifact.NewRetention(dir))

	key, _ := sink.PutVideo(context.Background(), "t1", "s1", []byte("x"))
	signed, _ := sink.Sign(context.Background(), key, -time.Hour) // already expired

	// crude parse of expires/sig from the query string for the test
	parts := strings.SplitN(signed, "?", 2)
	query, _ := url.ParseQuery(parts[len(parts)-1])
	expires, _ := strconv.ParseInt(query.Get("expires"), 10, 64)
	if sink.VerifySignature(key, expires, query.Get("sig")) {
		t.Error("expected expired signature to fail verification")
	}
}
