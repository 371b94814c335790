// Command smoke drives a running server through register, create, generate,
// continue, fetch and export. It needs a configured generation provider.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"time"

	"github.com/dustin/go-humanize"
)

type client struct {
	base string
	http *http.Client
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "server base URL")
	wait := flag.Duration("wait", 2*time.Second, "time to wait for the server to start")
	flag.Parse()

	time.Sleep(*wait)
	fmt.Println("Starting smoke test...")

	jar, _ := cookiejar.New(nil)
	c := &client{base: *baseURL, http: &http.Client{Jar: jar, Timeout: 3 * time.Minute}}

	step := func(name string, fn func() error) {
		fmt.Printf("%s...\n", name)
		if err := fn(); err != nil {
			fmt.Printf("FAILED: %s: %v\n", name, err)
			os.Exit(1)
		}
		fmt.Printf("PASSED: %s\n", name)
	}

	var health map[string]any
	step("1. Health", func() error {
		if err := c.call(http.MethodGet, "/healthz", nil, &health); err != nil {
			return err
		}
		if health["provider"] == "" {
			return fmt.Errorf("no generation provider configured")
		}
		return nil
	})

	email := fmt.Sprintf("smoke-%d@example.com", time.Now().Unix())
	step("2. Register", func() error {
		return c.call(http.MethodPost, "/api/auth/register", map[string]string{"email": email, "password": "smoke-password"}, nil)
	})

	var story struct {
		ID string `json:"id"`
	}
	step("3. Create story", func() error {
		return c.call(http.MethodPost, "/api/story/create", map[string]any{
			"title":     "The River Curse",
			"genre":     "folklore_horror",
			"premise":   "A village on the Ganga hides a drowned witch.",
			"structure": "acts",
			"actCount":  3,
			"initialCharacters": []map[string]any{
				{"name": "Meera", "traits": []string{"stubborn", "curious"}, "role": "protagonist"},
			},
			"initialWorldRules": []map[string]string{
				{"category": "magic", "rule": "The churail cannot cross running water"},
			},
		}, &story)
	})

	var chapter struct {
		Chapter struct {
			Index int    `json:"index"`
			Title string `json:"title"`
		} `json:"chapter"`
		Provider string `json:"provider"`
	}
	step("4. Generate chapter", func() error {
		if err := c.call(http.MethodPost, "/api/story/generate-chapter", map[string]any{
			"storyId":      story.ID,
			"direction":    "Open at dusk on the ghat",
			"userControls": map[string]string{"tone": "tense", "violenceLevel": "implied"},
		}, &chapter); err != nil {
			return err
		}
		fmt.Printf("   chapter %d %q via %s\n", chapter.Chapter.Index+1, chapter.Chapter.Title, chapter.Provider)
		return nil
	})

	step("5. Continue story", func() error {
		if err := c.call(http.MethodPost, "/api/story/continue", map[string]any{
			"storyId":     story.ID,
			"userPrompt":  "Meera hears anklets behind her",
			"chapterGoal": "Reveal who the churail was",
		}, &chapter); err != nil {
			return err
		}
		if chapter.Chapter.Index != 1 {
			return fmt.Errorf("expected chapter index 1, got %d", chapter.Chapter.Index)
		}
		return nil
	})

	step("6. Fetch story", func() error {
		var full struct {
			ChapterHistory []json.RawMessage `json:"chapterHistory"`
			TimelineEvents []json.RawMessage `json:"timelineEvents"`
		}
		if err := c.call(http.MethodGet, "/api/story/"+story.ID, nil, &full); err != nil {
			return err
		}
		if len(full.ChapterHistory) != 2 || len(full.TimelineEvents) != 2 {
			return fmt.Errorf("expected 2 chapters and 2 events, got %d and %d", len(full.ChapterHistory), len(full.TimelineEvents))
		}
		return nil
	})

	for _, format := range []string{"txt", "md", "html", "pdf", "docx"} {
		step("7. Export "+format, func() error {
			return c.download("/api/story/export?storyId=" + story.ID + "&format=" + format)
		})
	}
}

func (c *client) call(method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("status %d: %s", resp.StatusCode, data)
	}
	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}

func (c *client) download(path string) error {
	resp, err := c.http.Get(c.base + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	fmt.Printf("   %s, %s\n", resp.Header.Get("Content-Type"), humanize.Bytes(uint64(n)))
	return nil
}
