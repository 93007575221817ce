package detection

import (
	"testing"

	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromAnnotations(t *testing.T) {
	objs := []*visionpb.LocalizedObjectAnnotation{
		{
			Name:  "Dog",
			Score: 0.5,
			BoundingPoly: &visionpb.BoundingPoly{NormalizedVertices: []*visionpb.NormalizedVertex{
				{X: 0.25, Y: 0.5}, {X: 0.75, Y: 0.5}, {X: 0.75, Y: 1}, {X: 0.25, Y: 1},
			}},
		},
		nil,
		{Name: "Cat", Score: 0.25},
	}

	got := fromAnnotations(objs)
	require.Len(t, got, 2)
	assert.Equal(t, Detection{Label: "Dog", Confidence: 0.5, Box: Box{X: 0.25, Y: 0.5, Width: 0.5, Height: 0.5}}, got[0])
	assert.Equal(t, Detection{Label: "Cat", Confidence: 0.25}, got[1])
}

func TestVisionDetector_EmptyImage(t *testing.T) {
	d := NewVisionDetector()
	got, err := d.Detect(t.Context(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, d.Close())
}
