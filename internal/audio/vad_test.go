package audio

import (
	"testing"
)

func constantFrame(size int, amplitude int16) []int16 {
	samples := make([]int16, size)
	for i := range samples {
		samples[i] = amplitude
	}
	return samples
}

func testVADConfig() *VADConfig {
	return &VADConfig{
		EnergyThreshold: 500.0,
		SilenceFrames:   10,
		FrameSize:       320,
	}
}

func TestVADDetector_ProcessFrame_Speech(t *testing.T) {
	vad := NewVADDetector(testVADConfig())
	samples := constantFrame(320, 5000)

	for i := 0; i < 5; i++ {
		isSpeaking, speechStarted, _ := vad.ProcessFrame(samples)
		if !isSpeaking {
			t.Errorf("Expected speech detection on frame %d", i)
		}
		if i == 0 && !speechStarted {
			t.Error("Expected speech to start on first frame")
		}
		if i > 0 && speechStarted {
			t.Errorf("Expected speechStarted only once, got it on frame %d", i)
		}
	}
}

func TestVADDetector_ProcessFrame_Silence(t *testing.T) {
	vad := NewVADDetector(testVADConfig())
	samples := constantFrame(320, 10)

	for i := 0; i < 15; i++ {
		isSpeaking, _, _ := vad.ProcessFrame(samples)
		if isSpeaking {
			t.Errorf("Expected silence on frame %d", i)
		}
	}
}

func TestVADDetector_Hangover(t *testing.T) {
	vad := NewVADDetector(testVADConfig())
	high := constantFrame(320, 5000)
	low := constantFrame(320, 10)

	vad.ProcessFrame(high)

	// The first SilenceFrames-1 quiet frames keep the utterance open
	for i := 0; i < 9; i++ {
		isSpeaking, _, ended := vad.ProcessFrame(low)
		if !isSpeaking || ended {
			t.Fatalf("Expected hangover to keep speech active on quiet frame %d", i)
		}
	}

	isSpeaking, _, ended := vad.ProcessFrame(low)
	if isSpeaking || !ended {
		t.Error("Expected speech to end on the tenth quiet frame")
	}
}

func TestVADDetector_Reset(t *testing.T) {
	vad := NewVADDetector(testVADConfig())
	if isSpeaking, _, _ := vad.ProcessFrame(constantFrame(320, 5000)); !isSpeaking {
		t.Fatal("Expected speech to be detected")
	}

	vad.Reset()

	// Without the reset this quiet frame would still be inside the hangover
	isSpeaking, _, ended := vad.ProcessFrame(constantFrame(320, 0))
	if isSpeaking || ended {
		t.Error("Expected speech state to be cleared after reset")
	}

	_, started, _ := vad.ProcessFrame(constantFrame(320, 5000))
	if !started {
		t.Error("Expected a new utterance to start after reset")
	}
}

func TestDefaultVADConfig(t *testing.T) {
	config := DefaultVADConfig()
	if config.EnergyThreshold != 500.0 {
		t.Errorf("Expected default EnergyThreshold 500.0, got %f", config.EnergyThreshold)
	}
	if config.SilenceFrames != 25 {
		t.Errorf("Expected default SilenceFrames 25, got %d", config.SilenceFrames)
	}
	if config.FrameSize != FrameSizeFor(16000) {
		t.Errorf("Expected default FrameSize %d, got %d", FrameSizeFor(16000), config.FrameSize)
	}
}
