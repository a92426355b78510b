package detect

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"kinema/internal/pose"
	"kinema/internal/utils"
	"kinema/pkg/log"
)

// Options selects which detectors run on a frame and whether the annotated
// image is rendered into the result.
type Options struct {
	Body  bool
	Hands bool
	Draw  bool
}

// Service runs pose detection over images and frames. Calls are serialized so
// only one inference batch is in flight at a time.
type Service struct {
	body   *pose.BodyEstimator
	hand   *pose.HandEstimator
	device string
	mu     sync.Mutex
	logger *logrus.Entry
}

func NewService(body *pose.BodyEstimator, hand *pose.HandEstimator, device string) *Service {
	return &Service{
		body:   body,
		hand:   hand,
		device: device,
		logger: log.GetLogger(context.Background()).WithField("component", "detect"),
	}
}

func (s *Service) Device() string {
	return s.device
}

// Detect runs the requested detectors on a BGR image. It never panics: any
// failure, including a panic from the vision stack, is returned as a failed
// Result.
func (s *Service) Detect(ctx context.Context, img gocv.Mat, opts Options) (result *Result) {
	start := time.Now()
	result = &Result{
		Device:    s.device,
		Timestamp: float64(start.UnixNano()) / float64(time.Second),
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("detection panic: %v", r)
			*result = Result{
				Device:    s.device,
				Timestamp: result.Timestamp,
				Error:     fmt.Sprintf("detection panic: %v", r),
			}
		}
		result.ProcessingTime = time.Since(start).Seconds()
	}()

	results, canvas, err := s.run(ctx, img, opts)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer canvas.Close()

	result.Success = true
	result.DetectionResults = results

	if opts.Draw {
		encoded, err := utils.MatToBase64JPEG(canvas)
		if err != nil {
			s.logger.WithError(err).Error("encode result image failed")
		} else {
			result.ResultImage = encoded
		}
	}
	return result
}

// ProcessFrame annotates one video frame with detected body skeletons. The
// returned Mat is owned by the caller.
func (s *Service) ProcessFrame(ctx context.Context, frame gocv.Mat) (gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidate, people, err := s.body.Estimate(ctx, frame)
	if err != nil {
		return gocv.Mat{}, err
	}

	canvas := frame.Clone()
	pose.DrawBodyPose(&canvas, candidate, people)
	return canvas, nil
}

func (s *Service) run(ctx context.Context, img gocv.Mat, opts Options) (*DetectionResults, gocv.Mat, error) {
	if img.Empty() {
		return nil, gocv.Mat{}, fmt.Errorf("input image is empty")
	}

	canvas := img.Clone()
	results := &DetectionResults{}
	if !opts.Body && !opts.Hands {
		// Nothing to detect, skip inference entirely.
		return results, canvas, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	candidate, people, err := s.body.Estimate(ctx, img)
	if err != nil {
		canvas.Close()
		return nil, gocv.Mat{}, fmt.Errorf("body estimation: %w", err)
	}

	if opts.Body {
		results.Body = bodyResult(candidate, people)
		if opts.Draw {
			pose.DrawBodyPose(&canvas, candidate, people)
		}
	}

	if opts.Hands {
		hands, err := s.detectHands(ctx, img, candidate, people)
		if err != nil {
			canvas.Close()
			return nil, gocv.Mat{}, err
		}
		results.Hands = hands
		if opts.Draw {
			var allPeaks [][]image.Point
			for _, h := range hands.HandsData {
				peaks := make([]image.Point, len(h.Peaks))
				for i, p := range h.Peaks {
					peaks[i] = image.Pt(p[0], p[1])
				}
				allPeaks = append(allPeaks, peaks)
			}
			pose.DrawHandPose(&canvas, allPeaks)
		}
	}

	return results, canvas, nil
}

// detectHands crops each proposed wrist region, runs the hand estimator on the
// crop and maps keypoints back into image coordinates. (0,0) placeholders keep
// their sentinel value instead of being offset.
func (s *Service) detectHands(ctx context.Context, img gocv.Mat, candidate []pose.Peak, people []pose.Person) (*HandResult, error) {
	regions := pose.DetectHandRegions(candidate, people, img.Cols(), img.Rows())

	result := &HandResult{HandsData: []HandData{}}
	for _, region := range regions {
		rect := image.Rect(region.X, region.Y, region.X+region.Size, region.Y+region.Size)
		sub := img.Region(rect)
		crop := sub.Clone()
		sub.Close()

		peaks, err := s.hand.Estimate(ctx, crop)
		crop.Close()
		if err != nil {
			return nil, fmt.Errorf("hand estimation: %w", err)
		}

		data := HandData{
			Peaks:  make([][2]int, len(peaks)),
			BBox:   [3]int{region.X, region.Y, region.Size},
			IsLeft: region.IsLeft,
		}
		for i, p := range peaks {
			if p.X == 0 && p.Y == 0 {
				continue
			}
			data.Peaks[i] = [2]int{p.X + region.X, p.Y + region.Y}
		}
		result.HandsData = append(result.HandsData, data)
	}
	result.NumHands = len(result.HandsData)
	return result, nil
}

func bodyResult(candidate []pose.Peak, people []pose.Person) *BodyResult {
	res := &BodyResult{
		NumPeople: len(people),
		Candidate: make([][4]float64, len(candidate)),
		Subset:    make([][]float64, len(people)),
	}

	for i, p := range candidate {
		res.Candidate[i] = [4]float64{float64(p.X), float64(p.Y), float64(p.Score), float64(p.ID)}
	}

	for i, person := range people {
		row := make([]float64, pose.NumBodyParts+2)
		for s, id := range person.Slots {
			row[s] = float64(id)
		}
		row[pose.NumBodyParts] = person.Score
		row[pose.NumBodyParts+1] = float64(person.Parts)
		res.Subset[i] = row
		res.NumKeypoints += person.Parts
	}
	return res
}
