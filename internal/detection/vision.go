package detection

import (
	"context"
	"sync"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rotisserie/eris"
	"google.golang.org/api/option"
)

const (
	defaultMaxResults = 10
	annotateTimeout   = 30 * time.Second
)

// VisionDetector localizes objects with the google cloud vision API. The
// client is created on first use.
type VisionDetector struct {
	opts       []option.ClientOption
	maxResults int32

	mu     sync.Mutex
	client *vision.ImageAnnotatorClient
}

// NewVisionDetector creates a detector dialing with opts
func NewVisionDetector(opts ...option.ClientOption) *VisionDetector {
	return &VisionDetector{opts: opts, maxResults: defaultMaxResults}
}

func (d *VisionDetector) annotator(ctx context.Context) (*vision.ImageAnnotatorClient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client != nil {
		return d.client, nil
	}
	c, err := vision.NewImageAnnotatorClient(ctx, d.opts...)
	if err != nil {
		return nil, eris.Wrap(err, "detection: vision client")
	}
	d.client = c
	return c, nil
}

// Detect runs object localization on image
func (d *VisionDetector) Detect(ctx context.Context, image []byte) ([]Detection, error) {
	if len(image) == 0 {
		return nil, nil
	}
	client, err := d.annotator(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, annotateTimeout)
	defer cancel()

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image: &visionpb.Image{Content: image},
			Features: []*visionpb.Feature{
				{Type: visionpb.Feature_OBJECT_LOCALIZATION, MaxResults: d.maxResults},
			},
		}},
	}
	resp, err := client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, eris.Wrap(err, "detection: annotate image")
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return nil, nil
	}
	r0 := resp.Responses[0]
	if r0.Error != nil && r0.Error.Message != "" {
		return nil, eris.Errorf("detection: vision error: %s", r0.Error.Message)
	}
	return fromAnnotations(r0.LocalizedObjectAnnotations), nil
}

// Close releases the client
func (d *VisionDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.client == nil {
		return nil
	}
	err := d.client.Close()
	d.client = nil
	return err
}

func fromAnnotations(objs []*visionpb.LocalizedObjectAnnotation) []Detection {
	out := make([]Detection, 0, len(objs))
	for _, o := range objs {
		if o == nil {
			continue
		}
		out = append(out, Detection{
			Label:      o.Name,
			Confidence: float64(o.Score),
			Box:        boxFromPoly(o.BoundingPoly),
		})
	}
	return out
}

// boxFromPoly returns the normalized bounding rectangle of poly
func boxFromPoly(poly *visionpb.BoundingPoly) Box {
	if poly == nil || len(poly.NormalizedVertices) == 0 {
		return Box{}
	}
	minX, minY := float64(1), float64(1)
	maxX, maxY := float64(0), float64(0)
	for _, v := range poly.NormalizedVertices {
		if v == nil {
			continue
		}
		x, y := float64(v.X), float64(v.Y)
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)
	}
	if maxX < minX || maxY < minY {
		return Box{}
	}
	return Box{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
