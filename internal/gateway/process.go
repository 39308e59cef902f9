package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/starford/doorlink/internal/models"
)

// DefaultTimeout bounds one backend invocation when none is configured.
const DefaultTimeout = 10 * time.Second

// Process runs an external backend command once per query:
//
//	<command...> --root <root> <sub> <args...>
//
// and decodes its JSON stdout. Identical read queries in flight at the same
// time share one process.
type Process struct {
	command []string
	root    string
	timeout time.Duration
	logger  *slog.Logger
	reads   singleflight.Group
}

// NewProcess creates a Process gateway. command must name at least the
// executable.
func NewProcess(command []string, root string, timeout time.Duration, logger *slog.Logger) (*Process, error) {
	if len(command) == 0 || command[0] == "" {
		return nil, errors.New("gateway: empty backend command")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Process{command: command, root: root, timeout: timeout, logger: logger}, nil
}

// exec runs one backend subcommand and returns its stdout. A non-zero exit
// status is an error carrying the trimmed stderr.
func (p *Process) exec(ctx context.Context, sub string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	argv := append([]string{}, p.command[1:]...)
	argv = append(argv, "--root", p.root, sub)
	argv = append(argv, args...)

	cmd := exec.CommandContext(ctx, p.command[0], argv...)
	cmd.Dir = p.root
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("gateway: %s: %w: %s", sub, err, strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("gateway: %s: %w", sub, err)
	}
	return stdout.Bytes(), nil
}

// read runs a query through the singleflight group and decodes its output into a
// fresh value of type T. The shared call ignores the first caller's
// cancellation; each caller stops waiting when its own ctx is done.
func read[T any](ctx context.Context, p *Process, sub string, args ...string) (T, bool) {
	var zero T
	key := sub + "\x00" + strings.Join(args, "\x00")
	flight := context.WithoutCancel(ctx)
	ch := p.reads.DoChan(key, func() (any, error) {
		return p.exec(flight, sub, args...)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		p.logger.Warn("gateway: backend query abandoned", slog.String("sub", sub), slog.String("error", ctx.Err().Error()))
		return zero, false
	}
	out, err, shared := res.Val, res.Err, res.Shared
	if err != nil {
		p.logger.Warn("gateway: backend query failed", slog.String("sub", sub), slog.String("error", err.Error()))
		return zero, false
	}
	if shared {
		p.logger.Debug("gateway: shared backend result", slog.String("sub", sub))
	}
	var v T
	if err := json.Unmarshal(out.([]byte), &v); err != nil {
		p.logger.Warn("gateway: malformed backend output", slog.String("sub", sub), slog.String("error", err.Error()))
		return zero, false
	}
	return v, true
}

func (p *Process) Documents(ctx context.Context) []models.DocumentSummary {
	docs, ok := read[[]models.DocumentSummary](ctx, p, "documents")
	if !ok {
		return nil
	}
	return nonNil(docs)
}

func (p *Process) Items(ctx context.Context, prefix string) []models.ItemSummary {
	return p.summaries(ctx, "items", "--prefix", prefix)
}

func (p *Process) Parents(ctx context.Context, uid string) []models.ItemSummary {
	return p.summaries(ctx, "parents", "--item", uid)
}

func (p *Process) Children(ctx context.Context, uid string) []models.ItemSummary {
	return p.summaries(ctx, "children", "--item", uid)
}

func (p *Process) Linked(ctx context.Context, uid string) []models.ItemSummary {
	return p.summaries(ctx, "linked", "--item", uid)
}

func (p *Process) summaries(ctx context.Context, sub string, args ...string) []models.ItemSummary {
	items, ok := read[[]models.ItemSummary](ctx, p, sub, args...)
	if !ok {
		return nil
	}
	return nonNil(items)
}

func (p *Process) Link(ctx context.Context, child, parent string) *models.ItemSummary {
	out, err := p.exec(ctx, "link", child, parent)
	if err != nil {
		p.logger.Warn("gateway: link failed", slog.String("error", err.Error()))
		return nil
	}
	var item models.ItemSummary
	if err := json.Unmarshal(out, &item); err != nil || item.UID == "" {
		p.logger.Warn("gateway: malformed link output", slog.String("output", string(out)))
		return nil
	}
	return &item
}

func (p *Process) AddReference(ctx context.Context, uid string, entry models.ReferenceEntry) bool {
	payload, err := json.Marshal(entry)
	if err != nil {
		p.logger.Warn("gateway: encode reference", slog.String("error", err.Error()))
		return false
	}
	if _, err := p.exec(ctx, "add_reference", "--item", uid, string(payload)); err != nil {
		p.logger.Warn("gateway: add_reference failed", slog.String("error", err.Error()))
		return false
	}
	return true
}

func (p *Process) AddItem(ctx context.Context, prefix, text string) map[string]string {
	args := []string{"--prefix", prefix}
	if text != "" {
		args = append(args, "--text", text)
	}
	out, err := p.exec(ctx, "add_item", args...)
	if err != nil {
		p.logger.Warn("gateway: add_item failed", slog.String("error", err.Error()))
		return nil
	}
	var created map[string]string
	if err := json.Unmarshal(out, &created); err != nil || len(created) == 0 {
		p.logger.Warn("gateway: malformed add_item output", slog.String("output", string(out)))
		return nil
	}
	return created
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
