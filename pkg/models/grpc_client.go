package models

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/MrCodeEU/LiveCheck/pkg/utils"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	landmarkService = "landmarker.FaceLandmarker"
	detectMethod    = "/" + landmarkService + "/Detect"
)

// LandmarkClient manages the connection to the external face landmark service.
// Requests and responses are google.protobuf.Struct messages:
//
//	request:  {image: <base64 jpeg>, width, height, format: "jpeg", num_faces: 1}
//	response: {faces: [{landmarks: [[x, y, z], ...]}]}
type LandmarkClient struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

// NewLandmarkClient connects to the landmark service and checks its health
func NewLandmarkClient(address string, timeout time.Duration) (*LandmarkClient, error) {
	conn, err := grpc.NewClient(address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for landmark service at %s: %w", address, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: landmarkService})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	if health.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		_ = conn.Close()
		return nil, fmt.Errorf("landmark service is not serving (status %s)", health.GetStatus())
	}

	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &LandmarkClient{conn: conn, timeout: timeout}, nil
}

// Close closes the client connection
func (c *LandmarkClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Detect sends a frame to the landmark service. The boolean result is false
// when the service found no face.
func (c *LandmarkClient) Detect(ctx context.Context, img image.Image) (Landmarks, bool, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := NewDetectRequest(img)
	if err != nil {
		return nil, false, err
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, detectMethod, req, resp); err != nil {
		return nil, false, fmt.Errorf("landmark detection failed: %w", err)
	}

	return ParseDetectResponse(resp)
}

// NewDetectRequest builds the Detect request message for a frame
func NewDetectRequest(img image.Image) (*structpb.Struct, error) {
	data, err := utils.EncodeJPEG(img, 90)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	req, err := structpb.NewStruct(map[string]interface{}{
		"image":     data,
		"width":     bounds.Dx(),
		"height":    bounds.Dy(),
		"format":    "jpeg",
		"num_faces": 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build detect request: %w", err)
	}
	return req, nil
}

// ParseDetectResponse converts a Detect response into the first face's landmarks
func ParseDetectResponse(resp *structpb.Struct) (Landmarks, bool, error) {
	faces := resp.GetFields()["faces"].GetListValue().GetValues()
	if len(faces) == 0 {
		return nil, false, nil
	}

	points := faces[0].GetStructValue().GetFields()["landmarks"].GetListValue().GetValues()
	if len(points) == 0 {
		return nil, false, nil
	}

	landmarks := make(Landmarks, len(points))
	for i, p := range points {
		coords := p.GetListValue().GetValues()
		if len(coords) < 2 {
			return nil, false, fmt.Errorf("landmark %d has %d coordinates", i, len(coords))
		}
		landmarks[i].X = coords[0].GetNumberValue()
		landmarks[i].Y = coords[1].GetNumberValue()
		if len(coords) > 2 {
			landmarks[i].Z = coords[2].GetNumberValue()
		}
	}

	return landmarks, true, nil
}
