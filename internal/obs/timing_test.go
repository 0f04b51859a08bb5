package obs

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"testing"
)

func TestTimeLogsOpAndError(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)
	ctx := WithRequestID(context.Background(), "r1")
	func() (err error) {
		defer Time(ctx, "unit")(&err)
		return errors.New("boom")
	}()
	out := buf.String()
	if !strings.Contains(out, "req_id=r1 op=unit") || !strings.Contains(out, "err=boom") {
		t.Fatalf("unexpected log line %q", out)
	}
}
