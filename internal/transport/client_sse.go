package transport

import (
	"bufio"
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/roach88/listsync/internal/item"
)

// streamBuffer is how many decoded events may wait for the consumer.
const streamBuffer = 256

// Subscribe streams listID's live events until ctx ends or the server
// closes the stream.
func (c *Client) Subscribe(ctx context.Context, listID string) (<-chan item.Event, error) {
	return c.SubscribeFrom(ctx, listID, 0)
}

// SubscribeFrom is Subscribe preceded by a replay of every event after
// afterSeq.
func (c *Client) SubscribeFrom(ctx context.Context, listID string, afterSeq int64) (<-chan item.Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+listPath(listID, "events"), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	if afterSeq > 0 {
		req.Header.Set("Last-Event-ID", strconv.FormatInt(afterSeq, 10))
	}

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	c.logger.Debug("event stream open", "list", listID, "after", afterSeq)

	ch := make(chan item.Event, streamBuffer)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		count := 0
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		var dataLines []string

		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				if len(dataLines) == 0 {
					continue
				}
				payload := strings.Join(dataLines, "\n")
				dataLines = dataLines[:0]

				var w wireEvent
				if err := decodeJSON(strings.NewReader(payload), &w); err != nil {
					c.logger.Warn("undecodable event skipped", "list", listID, "error", err)
					continue
				}
				ev, err := w.event()
				if err != nil {
					c.logger.Warn("invalid event skipped", "list", listID, "error", err)
					continue
				}
				select {
				case ch <- ev:
					count++
				case <-ctx.Done():
					return
				}
				continue
			}
			if strings.HasPrefix(line, "data:") {
				dataLines = append(dataLines, strings.TrimSpace(line[len("data:"):]))
			}
		}
		c.logger.Debug("event stream closed", "list", listID, "received", count, "error", scanner.Err())
	}()
	return ch, nil
}
