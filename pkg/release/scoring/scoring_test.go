package scoring

import (
	"testing"

	"github.com/vmunix/reelq/pkg/release"
)

func TestScoreConstants(t *testing.T) {
	if ScoreResolution2160p != 100 {
		t.Errorf("ScoreResolution2160p = %d, want 100", ScoreResolution2160p)
	}
	if ScoreResolution1080p != 80 {
		t.Errorf("ScoreResolution1080p = %d, want 80", ScoreResolution1080p)
	}
	if ScoreResolution720p != 60 {
		t.Errorf("ScoreResolution720p = %d, want 60", ScoreResolution720p)
	}
	if ScoreResolutionOther != 40 {
		t.Errorf("ScoreResolutionOther = %d, want 40", ScoreResolutionOther)
	}
	if BonusSource != 10 {
		t.Errorf("BonusSource = %d, want 10", BonusSource)
	}
	if BonusCodec != 10 {
		t.Errorf("BonusCodec = %d, want 10", BonusCodec)
	}
	if BonusHDR != 15 {
		t.Errorf("BonusHDR = %d, want 15", BonusHDR)
	}
	if BonusAudio != 15 {
		t.Errorf("BonusAudio = %d, want 15", BonusAudio)
	}
	if BonusRemux != 20 {
		t.Errorf("BonusRemux = %d, want 20", BonusRemux)
	}
}

func TestEvaluate(t *testing.T) {
	p := Profile{
		Resolutions: []string{"2160p", "1080p"},
		Sources:     []string{"bluray"},
		HDR:         []string{"dv"},
		PreferRemux: true,
		Reject:      []string{"cam"},
	}

	uhd, ok := Evaluate(release.Parse("Heat.1995.2160p.UHD.BluRay.REMUX.DV.HEVC-FGT"), 0, p)
	if !ok {
		t.Fatal("uhd remux rejected")
	}
	hd, ok := Evaluate(release.Parse("Heat.1995.1080p.BluRay.x264-GROUP"), 0, p)
	if !ok {
		t.Fatal("1080p rejected")
	}
	if uhd <= hd {
		t.Errorf("2160p remux score %d should beat 1080p score %d", uhd, hd)
	}

	if _, ok := Evaluate(release.Parse("Heat.1995.720p.BluRay.x264-GROUP"), 0, p); ok {
		t.Error("720p outside the accept list should be rejected")
	}
	if _, ok := Evaluate(release.Parse("Heat.1995.1080p.CAM-NOGRP"), 0, p); ok {
		t.Error("cam should be rejected")
	}
}

func TestEvaluate_Size(t *testing.T) {
	p := Profile{MinSizeMB: 1000, MaxSizeMB: 5000}
	info := release.Parse("Heat.1995.1080p.WEB-DL.x264-GROUP")

	if _, ok := Evaluate(info, 500<<20, p); ok {
		t.Error("below min size accepted")
	}
	if _, ok := Evaluate(info, 6000<<20, p); ok {
		t.Error("above max size accepted")
	}
	if _, ok := Evaluate(info, 2000<<20, p); !ok {
		t.Error("in-range size rejected")
	}
	if _, ok := Evaluate(info, 0, p); !ok {
		t.Error("unknown size should pass the minimum")
	}
}
