package handler

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	cws "github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
)

const (
	streamBuffer       = 64
	streamWriteTimeout = 5 * time.Second
)

// stream upgrades the request to a websocket and writes every frame as a JSON
// text message. It returns when the peer disconnects, frames is closed, or
// done is closed; in the last case frames already queued are flushed first.
func stream(c *gin.Context, originPatterns []string, frames <-chan interface{}, done <-chan struct{}) {
	conn, err := cws.Accept(rawWriter(c), c.Request, &cws.AcceptOptions{OriginPatterns: originPatterns})
	if err != nil {
		log.Printf("websocket accept: %v", err)
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(c.Request.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				conn.Close(cws.StatusNormalClosure, "")
				return
			}
			if err := writeFrame(ctx, conn, frame); err != nil {
				return
			}
		case <-done:
			for {
				select {
				case frame := <-frames:
					if err := writeFrame(ctx, conn, frame); err != nil {
						return
					}
				default:
					conn.Close(cws.StatusNormalClosure, "run ended")
					return
				}
			}
		}
	}
}

// rawWriter returns the writer under gin's wrapper. Accept writes the 101
// status itself before hijacking, which gin's writer refuses once its header
// has been written.
func rawWriter(c *gin.Context) http.ResponseWriter {
	if unwrapper, ok := c.Writer.(interface{ Unwrap() http.ResponseWriter }); ok {
		return unwrapper.Unwrap()
	}
	return c.Writer
}

func writeFrame(ctx context.Context, conn *cws.Conn, frame interface{}) error {
	writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, frame)
}

// originPatterns turns CORS origins such as http://localhost:5173 into the
// host patterns the websocket handshake checks.
func originPatterns(corsOrigins []string) []string {
	patterns := make([]string, 0, len(corsOrigins))
	for _, origin := range corsOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if origin == "*" {
			return []string{"*"}
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			origin = parsed.Host
		}
		patterns = append(patterns, origin)
	}
	return patterns
}
