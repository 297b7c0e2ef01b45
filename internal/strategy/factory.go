package strategy

import (
	"errors"

	"market-replay-lab/internal/domain"
)

// Factory errors
var (
	ErrUnknownStrategyType        = errors.New("unknown strategy type")
	ErrMissingImbalanceThreshold  = errors.New("IMBALANCE requires ImbalanceThreshold")
	ErrInvalidImbalanceThreshold  = errors.New("IMBALANCE threshold must be in (0.5, 1)")
	ErrMissingLookbackTrades      = errors.New("MOMENTUM requires LookbackTrades")
	ErrMissingMomentumTicks       = errors.New("MOMENTUM requires MomentumTicks")
	ErrInvalidLookbackTrades      = errors.New("MOMENTUM lookback must be at least 2")
	ErrMissingReversionTicks      = errors.New("MEAN_REVERSION requires ReversionTicks")
	ErrInvalidReversionTicks      = errors.New("MEAN_REVERSION band must be positive")
)

// FromConfig creates a Strategy from domain.StrategyConfig.
// Validates required parameters per strategy type.
func FromConfig(cfg domain.StrategyConfig) (Strategy, error) {
	switch cfg.StrategyType {
	case domain.StrategyTypeImbalance:
		return fromImbalanceConfig(cfg)
	case domain.StrategyTypeMomentum:
		return fromMomentumConfig(cfg)
	case domain.StrategyTypeMeanReversion:
		return fromMeanReversionConfig(cfg)
	default:
		return nil, ErrUnknownStrategyType
	}
}

func fromImbalanceConfig(cfg domain.StrategyConfig) (*ImbalanceStrategy, error) {
	if cfg.ImbalanceThreshold == nil {
		return nil, ErrMissingImbalanceThreshold
	}
	if *cfg.ImbalanceThreshold <= 0.5 || *cfg.ImbalanceThreshold >= 1 {
		return nil, ErrInvalidImbalanceThreshold
	}

	return NewImbalanceStrategy(*cfg.ImbalanceThreshold), nil
}

func fromMomentumConfig(cfg domain.StrategyConfig) (*MomentumStrategy, error) {
	if cfg.LookbackTrades == nil {
		return nil, ErrMissingLookbackTrades
	}
	if cfg.MomentumTicks == nil {
		return nil, ErrMissingMomentumTicks
	}
	if *cfg.LookbackTrades < 2 {
		return nil, ErrInvalidLookbackTrades
	}

	return NewMomentumStrategy(*cfg.LookbackTrades, *cfg.MomentumTicks), nil
}

func fromMeanReversionConfig(cfg domain.StrategyConfig) (*MeanReversionStrategy, error) {
	if cfg.ReversionTicks == nil {
		return nil, ErrMissingReversionTicks
	}
	if *cfg.ReversionTicks <= 0 {
		return nil, ErrInvalidReversionTicks
	}

	return NewMeanReversionStrategy(*cfg.ReversionTicks), nil
}
