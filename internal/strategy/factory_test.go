package strategy

import (
	"errors"
	"testing"

	"market-replay-lab/internal/domain"
)

func TestFromConfig_Imbalance(t *testing.T) {
	threshold := 0.65
	cfg := domain.StrategyConfig{
		StrategyType:       domain.StrategyTypeImbalance,
		ImbalanceThreshold: &threshold,
	}

	s, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}

	im, ok := s.(*ImbalanceStrategy)
	if !ok {
		t.Fatalf("expected *ImbalanceStrategy, got %T", s)
	}
	if im.Threshold != 0.65 {
		t.Errorf("expected 0.65, got %f", im.Threshold)
	}
}

func TestFromConfig_Momentum(t *testing.T) {
	lookback := 5
	drift := 2.0
	cfg := domain.StrategyConfig{
		StrategyType:   domain.StrategyTypeMomentum,
		LookbackTrades: &lookback,
		MomentumTicks:  &drift,
	}

	s, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}

	mo, ok := s.(*MomentumStrategy)
	if !ok {
		t.Fatalf("expected *MomentumStrategy, got %T", s)
	}
	if mo.Lookback != 5 {
		t.Errorf("expected 5, got %d", mo.Lookback)
	}
	if mo.MinDriftTicks != 2.0 {
		t.Errorf("expected 2.0, got %f", mo.MinDriftTicks)
	}
}

func TestFromConfig_MeanReversion(t *testing.T) {
	band := 3.0
	cfg := domain.StrategyConfig{
		StrategyType:   domain.StrategyTypeMeanReversion,
		ReversionTicks: &band,
	}

	s, err := FromConfig(cfg)
	if err != nil {
		t.Fatalf("FromConfig failed: %v", err)
	}

	mr, ok := s.(*MeanReversionStrategy)
	if !ok {
		t.Fatalf("expected *MeanReversionStrategy, got %T", s)
	}
	if mr.BandTicks != 3.0 {
		t.Errorf("expected 3.0, got %f", mr.BandTicks)
	}
}

func TestFromConfig_UnknownType(t *testing.T) {
	cfg := domain.StrategyConfig{StrategyType: "ARBITRAGE"}

	_, err := FromConfig(cfg)
	if !errors.Is(err, ErrUnknownStrategyType) {
		t.Errorf("expected ErrUnknownStrategyType, got %v", err)
	}
}

func TestFromConfig_MissingParams(t *testing.T) {
	badThreshold := 0.4
	lookback := 5
	shortLookback := 1
	drift := 2.0
	zeroBand := 0.0

	tests := []struct {
		name    string
		cfg     domain.StrategyConfig
		wantErr error
	}{
		{
			name:    "imbalance missing threshold",
			cfg:     domain.StrategyConfig{StrategyType: domain.StrategyTypeImbalance},
			wantErr: ErrMissingImbalanceThreshold,
		},
		{
			name: "imbalance threshold out of range",
			cfg: domain.StrategyConfig{
				StrategyType:       domain.StrategyTypeImbalance,
				ImbalanceThreshold: &badThreshold,
			},
			wantErr: ErrInvalidImbalanceThreshold,
		},
		{
			name: "momentum missing lookback",
			cfg: domain.StrategyConfig{
				StrategyType:  domain.StrategyTypeMomentum,
				MomentumTicks: &drift,
			},
			wantErr: ErrMissingLookbackTrades,
		},
		{
			name: "momentum missing drift",
			cfg: domain.StrategyConfig{
				StrategyType:   domain.StrategyTypeMomentum,
				LookbackTrades: &lookback,
			},
			wantErr: ErrMissingMomentumTicks,
		},
		{
			name: "momentum lookback too short",
			cfg: domain.StrategyConfig{
				StrategyType:   domain.StrategyTypeMomentum,
				LookbackTrades: &shortLookback,
				MomentumTicks:  &drift,
			},
			wantErr: ErrInvalidLookbackTrades,
		},
		{
			name:    "mean reversion missing band",
			cfg:     domain.StrategyConfig{StrategyType: domain.StrategyTypeMeanReversion},
			wantErr: ErrMissingReversionTicks,
		},
		{
			name: "mean reversion zero band",
			cfg: domain.StrategyConfig{
				StrategyType:   domain.StrategyTypeMeanReversion,
				ReversionTicks: &zeroBand,
			},
			wantErr: ErrInvalidReversionTicks,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromConfig(tt.cfg)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestStrategyIDs_IncludeParameters(t *testing.T) {
	if got := NewImbalanceStrategy(0.65).ID(); got != "IMBALANCE_t0.65" {
		t.Errorf("unexpected ID: %s", got)
	}
	if got := NewMomentumStrategy(5, 2).ID(); got != "MOMENTUM_n5_d2.0" {
		t.Errorf("unexpected ID: %s", got)
	}
	if got := NewMeanReversionStrategy(3).ID(); got != "MEAN_REVERSION_b3.0" {
		t.Errorf("unexpected ID: %s", got)
	}
}
