/*
 * Copyright (C) 2025-2026, Webrecorder Software. All rights reserved.
 * See LICENSE for license information.
 */

// Package crawlredis wraps the per-crawl Redis keyspace shared with crawler
// workers. Workers own the queue, the seen set and the page stream; the
// operator owns the exclusion list and the stop/pause flags, and drains
// heartbeats and pages read-only. All operations are single-key.
package crawlredis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"k8s.io/klog/v2"

	"github.com/webrecorder/btrix-operator/pkg/utils/timeutil"
)

const (
	keyQueue      = "q:%s"
	keySeen       = "seen:%s"
	keyExclusions = "excl:%s"
	keyPages      = "pages:%s"
	keyStatus     = "status:%s:%d"
	keyStop       = "stop:%s"
	keyPause      = "pause:%s"
	keySize       = "size:%s"
	keyFiles      = "files:%s"
)

// Heartbeat is the JSON object each worker writes to status:<id>:<podIndex>.
type Heartbeat struct {
	PagesDone    int64  `json:"pagesDone"`
	Size         int64  `json:"size"`
	LastPageTime string `json:"lastPageTime"`
	State        string `json:"state"`
}

// LastPage parses the heartbeat's ISO-8601 page timestamp.
func (h *Heartbeat) LastPage() (time.Time, error) {
	return timeutil.ParseRFC3339Milli(h.LastPageTime)
}

// PageEntry is one drained record from the pages:<id> stream, carrying the
// worker's page fields.
type PageEntry struct {
	Id        string `json:"id"`
	Url       string `json:"url"`
	Ts        string `json:"ts,omitempty"`
	Title     string `json:"title,omitempty"`
	LoadState int    `json:"loadState,omitempty"`
	Status    int    `json:"status,omitempty"`
	Mime      string `json:"mime,omitempty"`
	Depth     int    `json:"depth,omitempty"`
	Seed      bool   `json:"seed,omitempty"`
	IsError   bool   `json:"isError,omitempty"`
	IsFile    bool   `json:"isFile,omitempty"`
}

// FileEntry is one WACZ upload report from the files:<id> list, written by a
// worker after it uploads a finalized archive.
type FileEntry struct {
	Filename string `json:"filename"`
	Hash     string `json:"hash"`
	Size     int64  `json:"size"`
}

type Client struct {
	rdb *redis.Client
}

func NewClient(url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &Client{rdb: redis.NewClient(opts)}, nil
}

// NewClientFromRedis wraps an existing connection, used by tests with
// miniredis-style fakes.
func NewClientFromRedis(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// ReadHeartbeats returns the latest heartbeat per pod index. Missing keys
// (worker not started yet, or key expired) are simply absent from the map.
func (c *Client) ReadHeartbeats(ctx context.Context, crawlId string, podCount int) (map[int]*Heartbeat, error) {
	beats := make(map[int]*Heartbeat, podCount)
	for i := 0; i < podCount; i++ {
		raw, err := c.rdb.Get(ctx, fmt.Sprintf(keyStatus, crawlId, i)).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, err
		}
		var hb Heartbeat
		if err = json.Unmarshal([]byte(raw), &hb); err != nil {
			klog.ErrorS(err, "malformed heartbeat", "crawl", crawlId, "pod", i)
			continue
		}
		beats[i] = &hb
	}
	return beats, nil
}

// DrainPages pops up to batch entries from the page stream. Malformed
// entries are dropped after logging; the stream must keep moving.
func (c *Client) DrainPages(ctx context.Context, crawlId string, batch int) ([]*PageEntry, error) {
	key := fmt.Sprintf(keyPages, crawlId)
	var pages []*PageEntry
	for i := 0; i < batch; i++ {
		raw, err := c.rdb.LPop(ctx, key).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return pages, err
		}
		var entry PageEntry
		if err = json.Unmarshal([]byte(raw), &entry); err != nil {
			klog.ErrorS(err, "malformed page entry dropped", "crawl", crawlId)
			continue
		}
		pages = append(pages, &entry)
	}
	return pages, nil
}

// DrainFiles pops the WACZ upload reports accumulated by the workers.
func (c *Client) DrainFiles(ctx context.Context, crawlId string) ([]*FileEntry, error) {
	key := fmt.Sprintf(keyFiles, crawlId)
	var files []*FileEntry
	for {
		raw, err := c.rdb.LPop(ctx, key).Result()
		if err == redis.Nil {
			break
		}
		if err != nil {
			return files, err
		}
		var entry FileEntry
		if err = json.Unmarshal([]byte(raw), &entry); err != nil {
			klog.ErrorS(err, "malformed file entry dropped", "crawl", crawlId)
			continue
		}
		files = append(files, &entry)
	}
	return files, nil
}

// PagesPending returns the number of undrained page entries.
func (c *Client) PagesPending(ctx context.Context, crawlId string) (int64, error) {
	return c.rdb.LLen(ctx, fmt.Sprintf(keyPages, crawlId)).Result()
}

// PagesFound returns the total URLs discovered so far: queued plus already
// processed, approximated by the seen-set cardinality.
func (c *Client) PagesFound(ctx context.Context, crawlId string) (int64, error) {
	return c.rdb.SCard(ctx, fmt.Sprintf(keySeen, crawlId)).Result()
}

// QueueSize returns the pending URL count.
func (c *Client) QueueSize(ctx context.Context, crawlId string) (int64, error) {
	return c.rdb.LLen(ctx, fmt.Sprintf(keyQueue, crawlId)).Result()
}

// CrawlSize returns the running byte total reported by workers.
func (c *Client) CrawlSize(ctx context.Context, crawlId string) (int64, error) {
	raw, err := c.rdb.Get(ctx, fmt.Sprintf(keySize, crawlId)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return raw, err
}

func (c *Client) SetStop(ctx context.Context, crawlId string) error {
	return c.rdb.Set(ctx, fmt.Sprintf(keyStop, crawlId), "1", 0).Err()
}

func (c *Client) IsStopping(ctx context.Context, crawlId string) (bool, error) {
	n, err := c.rdb.Exists(ctx, fmt.Sprintf(keyStop, crawlId)).Result()
	return n > 0, err
}

func (c *Client) SetPause(ctx context.Context, crawlId string) error {
	return c.rdb.Set(ctx, fmt.Sprintf(keyPause, crawlId), "1", 0).Err()
}

func (c *Client) ClearPause(ctx context.Context, crawlId string) error {
	return c.rdb.Del(ctx, fmt.Sprintf(keyPause, crawlId)).Err()
}

// SetExclusions replaces the exclusion regex list; workers re-read it on
// change.
func (c *Client) SetExclusions(ctx context.Context, crawlId string, patterns []string) error {
	key := fmt.Sprintf(keyExclusions, crawlId)
	pipe := c.rdb.TxPipeline()
	pipe.Del(ctx, key)
	if len(patterns) > 0 {
		vals := make([]interface{}, len(patterns))
		for i, p := range patterns {
			vals[i] = p
		}
		pipe.RPush(ctx, key, vals...)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// DeleteCrawlKeys removes every key belonging to the crawl on teardown.
func (c *Client) DeleteCrawlKeys(ctx context.Context, crawlId string, podCount int) error {
	keys := []string{
		fmt.Sprintf(keyQueue, crawlId),
		fmt.Sprintf(keySeen, crawlId),
		fmt.Sprintf(keyExclusions, crawlId),
		fmt.Sprintf(keyPages, crawlId),
		fmt.Sprintf(keyStop, crawlId),
		fmt.Sprintf(keyPause, crawlId),
		fmt.Sprintf(keySize, crawlId),
		fmt.Sprintf(keyFiles, crawlId),
	}
	for i := 0; i < podCount; i++ {
		keys = append(keys, fmt.Sprintf(keyStatus, crawlId, i))
	}
	return c.rdb.Del(ctx, keys...).Err()
}
