package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/seqsense/pcgol/mat"
	"go.uber.org/zap"

	"github.com/seqsense/splatview/cloud"
	"github.com/seqsense/splatview/frame"
)

const inspectTimeout = 60 * time.Second

var (
	errFetch         = errors.New("failed to fetch cloud")
	errCloudTooLarge = errors.New("cloud exceeds the inspect size limit")
)

// Inspection summarizes a decoded cloud and the framing the viewer would
// apply to it.
type Inspection struct {
	Format   string     `json:"format"`
	Points   int        `json:"points"`
	HasColor bool       `json:"has_color"`
	Splat    bool       `json:"splat"`
	Empty    bool       `json:"empty"`
	Min      mat.Vec3   `json:"min"`
	Max      mat.Vec3   `json:"max"`
	Center   mat.Vec3   `json:"center"`
	Extent   float32    `json:"extent"`
	Scale    float32    `json:"scale"`
	Radius   float32    `json:"radius"`
	Outliers int        `json:"outliers"`
	Camera   cameraJSON `json:"camera"`
}

type cameraJSON struct {
	Position mat.Vec3 `json:"position"`
	Target   mat.Vec3 `json:"target"`
	Up       mat.Vec3 `json:"up"`
	FOV      float32  `json:"fov"`
	Near     float32  `json:"near"`
	Far      float32  `json:"far"`
}

// Inspect computes the framing of c without modifying it.
func Inspect(c *cloud.Cloud, o frame.Options) Inspection {
	n := frame.Plan(c.Positions, o)
	cam := frame.Home(n.Radius, o)
	return Inspection{
		Format:   c.Format.String(),
		Points:   c.Len(),
		HasColor: c.HasColor(),
		Splat:    c.IsSplat(),
		Empty:    n.Empty,
		Min:      n.Bounds.Min,
		Max:      n.Bounds.Max,
		Center:   n.Center,
		Extent:   n.Extent,
		Scale:    n.Scale,
		Radius:   n.Radius,
		Outliers: n.Outliers,
		Camera: cameraJSON{
			Position: cam.Position,
			Target:   cam.Target,
			Up:       cam.Up,
			FOV:      cam.FOV,
			Near:     cam.Near,
			Far:      cam.Far,
		},
	}
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "Missing url", "")
		return
	}
	if err := s.codec.Validate(raw); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid URL", err.Error())
		return
	}

	c, err := s.fetchCloud(r.Context(), raw)
	if err != nil {
		s.logger.Info("inspect failed", zap.String("url", raw), zap.Error(err))
		if errors.Is(err, errCloudTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Cloud too large",
				fmt.Sprintf("Clouds larger than %d bytes cannot be inspected.", s.opts.Server.InspectMaxBytes))
			return
		}
		if errors.Is(err, errFetch) {
			writeError(w, http.StatusBadGateway, "Failed to load cloud", err.Error())
			return
		}
		writeError(w, http.StatusUnprocessableEntity, "Failed to parse cloud", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, Inspect(c, s.opts.Viewer))
}

func (s *Server) fetchCloud(ctx context.Context, rawURL string) (*cloud.Cloud, error) {
	ctx, cancel := context.WithTimeout(ctx, inspectTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errFetch, err)
	}
	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", errFetch, resp.StatusCode)
	}

	body := &cappedReader{r: resp.Body, remaining: s.opts.Server.InspectMaxBytes}
	var c *cloud.Cloud
	if f := cloud.FormatFromName(rawURL); f != cloud.FormatUnknown {
		c, err = cloud.DecodeFormat(body, f)
	} else {
		c, err = cloud.Decode(body)
	}
	if body.exceeded {
		return nil, errCloudTooLarge
	}
	return c, err
}

// cappedReader fails with errCloudTooLarge once more than remaining bytes
// are read. Decoders may wrap the error, so exceeded is checked as well.
type cappedReader struct {
	r         io.Reader
	remaining int64
	exceeded  bool
}

func (c *cappedReader) Read(p []byte) (int, error) {
	if c.exceeded {
		return 0, errCloudTooLarge
	}
	if int64(len(p)) > c.remaining+1 {
		p = p[:c.remaining+1]
	}
	n, err := c.r.Read(p)
	c.remaining -= int64(n)
	if c.remaining < 0 {
		c.exceeded = true
		return n - 1, errCloudTooLarge
	}
	return n, err
}
