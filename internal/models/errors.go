package models

import (
	"errors"
	"fmt"
)

// Core failure kinds
var (
	ErrEmptyAlignment            = errors.New("no overlapping dates between returns and factors")
	ErrUnderdeterminedRegression = errors.New("fewer observations than coefficients to estimate")
	ErrNumericalInstability      = errors.New("ill-conditioned design matrix")
	ErrInsufficientHistory       = errors.New("insufficient history")
	ErrUntrainedModel            = errors.New("model is not trained")
	ErrEmptySelection            = errors.New("no assets selected over the evaluation horizon")
	ErrInvalidInput              = errors.New("invalid input")
	ErrNotFound                  = errors.New("record not found")
)

// Stage names a pipeline stage
type Stage string

const (
	StageLoad       Stage = "load"
	StagePrepare    Stage = "prepare"
	StageAlign      Stage = "align"
	StagePremiums   Stage = "premiums"
	StageRegression Stage = "regression"
	StageRolling    Stage = "rolling_regression"
	StageSynthesis  Stage = "synthesis"
	StageBacktest   Stage = "backtest"
	StageMLStrategy Stage = "ml_strategy"
	StageCompare    Stage = "compare"
	StagePersist    Stage = "persist"
)

// StageError reports the stage, and the asset when relevant, at which a run aborted
type StageError struct {
	Stage Stage
	Asset string
	Err   error
}

func (e *StageError) Error() string {
	if e.Asset != "" {
		return fmt.Sprintf("%s [%s]: %v", e.Stage, e.Asset, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// NewStageError wraps err with its stage. A nil err yields nil.
func NewStageError(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) && se.Stage == stage {
		return err
	}
	stageErr := &StageError{Stage: stage, Err: err}
	var ae *AssetError
	if errors.As(err, &ae) {
		stageErr.Asset = ae.Asset
	}
	return stageErr
}

// AssetError wraps err with the asset it belongs to
type AssetError struct {
	Asset string
	Err   error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("asset %s: %v", e.Asset, e.Err)
}

func (e *AssetError) Unwrap() error {
	return e.Err
}
