package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// MockClient is an in-process engine fake for development. Every job
// completes immediately with one take per requested variation.
type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) CreateJob(_ context.Context, req GenerateRequest) (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return fmt.Sprintf("mock_%d_%s", req.Variations, hex.EncodeToString(buf[:])), nil
}

func (m *MockClient) GetJob(_ context.Context, jobID string) (JobInfo, error) {
	takes := []Take{
		{
			AudioURL: fmt.Sprintf("https://example.com/audio/%s.wav", jobID),
			StemURLs: []string{
				fmt.Sprintf("https://example.com/audio/%s_drums.wav", jobID),
				fmt.Sprintf("https://example.com/audio/%s_bass.wav", jobID),
			},
		},
	}
	return JobInfo{ID: jobID, Status: StatusCompleted, Takes: takes}, nil
}
