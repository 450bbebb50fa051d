package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pharrrodev/type2lyfe-sub001/internal/capture"
	"github.com/pharrrodev/type2lyfe-sub001/internal/editor"
	"github.com/pharrrodev/type2lyfe-sub001/internal/normalize"
	"github.com/pharrrodev/type2lyfe-sub001/internal/record"
	"github.com/pharrrodev/type2lyfe-sub001/internal/submission"
)

type LogCmd struct {
	Type string `arg:"" help:"Log type: glucose, meal, medication, blood-pressure or weight."`
	Mode string `short:"m" enum:"manual,photo,voice" default:"manual" help:"Capture mode."`

	Value      string   `help:"Glucose or weight value."`
	Unit       string   `help:"mmol/L, mg/dL, kg or lb."`
	Context    string   `help:"Meal context for glucose: before_meal, after_meal, fasting or random."`
	Medication string   `help:"Medication id or name from your catalog."`
	Quantity   string   `help:"Medication quantity."`
	Systolic   string   `help:"Systolic pressure."`
	Diastolic  string   `help:"Diastolic pressure."`
	Pulse      string   `help:"Pulse."`
	Item       []string `help:"Meal item as name[:carbs[:protein[:fat[:calories]]]]; repeatable."`

	Image      string `type:"existingfile" help:"Photo to analyze in photo mode."`
	Audio      string `type:"existingfile" help:"Recording to transcribe in voice mode."`
	Transcript string `help:"Already transcribed text for voice mode."`

	Timeout time.Duration `default:"15s" help:"How long to wait for the server."`
}

func (cmd *LogCmd) Run(ctx *Context) error {
	logType, err := record.ParseLogType(cmd.Type)
	if err != nil {
		return fmt.Errorf("%w: %q", err, cmd.Type)
	}
	mode, err := record.ParseCaptureMode(cmd.Mode)
	if err != nil {
		return err
	}

	backend, err := ctx.AuthorizedClient()
	if err != nil {
		return err
	}
	controller := capture.New(backend, capture.Options{
		Submission: submission.Options{Timeout: cmd.Timeout, Logger: ctx.Logger},
		Logger:     ctx.Logger,
	})
	if _, err := controller.Start(logType, mode); err != nil {
		return fmt.Errorf("%s cannot be captured by %s", logType.Label(), mode)
	}

	runCtx := context.Background()
	session, err := cmd.capture(runCtx, ctx, controller, logType, mode)
	if err != nil {
		if session.Message != "" {
			return errors.New(session.Message)
		}
		return err
	}
	for _, warning := range session.Warnings {
		fmt.Fprintln(ctx.out(), renderWarning(warning))
	}

	outcome, err := controller.Submit(runCtx)
	if errors.Is(err, record.ErrSetupRequired) {
		return errors.New("add a medication first: type2lyfe medications add <name>")
	}
	if err != nil {
		return err
	}
	if outcome.Failure != nil {
		return outcome.Failure
	}

	fmt.Fprintln(ctx.out(), renderConfirmation(outcome.Record))
	if outcome.ClockSkew != 0 {
		fmt.Fprintf(ctx.out(), "note: the server recorded a time %s away from this device\n", outcome.ClockSkew.Round(time.Second))
	}
	return nil
}

func (cmd *LogCmd) capture(runCtx context.Context, ctx *Context, controller *capture.Controller, logType record.LogType, mode record.CaptureMode) (editor.Session, error) {
	switch mode {
	case record.ModePhoto:
		if cmd.Image == "" {
			return editor.Session{}, errors.New("photo mode needs --image")
		}
		file, err := os.Open(cmd.Image)
		if err != nil {
			return editor.Session{}, err
		}
		defer file.Close()
		return controller.CapturePhoto(runCtx, file, filepath.Base(cmd.Image))
	case record.ModeVoice:
		switch {
		case strings.TrimSpace(cmd.Transcript) != "":
			return controller.ApplyTranscript(runCtx, cmd.Transcript)
		case cmd.Audio != "":
			file, err := os.Open(cmd.Audio)
			if err != nil {
				return editor.Session{}, err
			}
			defer file.Close()
			return controller.CaptureVoice(runCtx, file, filepath.Base(cmd.Audio))
		default:
			return editor.Session{}, errors.New("voice mode needs --transcript or --audio")
		}
	default:
		form, err := cmd.form(runCtx, ctx, logType)
		if err != nil {
			return editor.Session{}, err
		}
		return controller.EditManual(form)
	}
}

func (cmd *LogCmd) form(runCtx context.Context, ctx *Context, logType record.LogType) (normalize.Form, error) {
	form := normalize.Form{
		Value:       cmd.Value,
		Unit:        cmd.Unit,
		MealContext: cmd.Context,
		Quantity:    cmd.Quantity,
		Systolic:    cmd.Systolic,
		Diastolic:   cmd.Diastolic,
		Pulse:       cmd.Pulse,
	}
	for _, raw := range cmd.Item {
		item, err := parseItemFlag(raw)
		if err != nil {
			return normalize.Form{}, err
		}
		form.Items = append(form.Items, item)
	}

	if logType == record.LogTypeMedication && strings.TrimSpace(cmd.Medication) != "" {
		backend, err := ctx.AuthorizedClient()
		if err != nil {
			return normalize.Form{}, err
		}
		catalog, err := backend.Catalog(runCtx)
		if err != nil {
			return normalize.Form{}, fmt.Errorf("load medications: %w", err)
		}
		form.MedicationID = resolveMedication(catalog, cmd.Medication)
	}
	return form, nil
}

// resolveMedication accepts a catalog id or a name; unknown input is passed
// through so validation reports it.
func resolveMedication(catalog record.Catalog, raw string) string {
	raw = strings.TrimSpace(raw)
	if medication, ok := catalog.Lookup(raw); ok {
		return medication.ID
	}
	if medication, ok := catalog.MatchName(raw); ok {
		return medication.ID
	}
	return raw
}

func parseItemFlag(raw string) (normalize.FoodItemForm, error) {
	parts := strings.Split(raw, ":")
	if len(parts) > 5 {
		return normalize.FoodItemForm{}, fmt.Errorf("meal item %q has too many fields", raw)
	}
	if strings.TrimSpace(parts[0]) == "" {
		return normalize.FoodItemForm{}, fmt.Errorf("meal item %q needs a name", raw)
	}

	fields := make([]string, 5)
	copy(fields, parts)
	return normalize.FoodItemForm{
		Name:     strings.TrimSpace(fields[0]),
		Carbs:    strings.TrimSpace(fields[1]),
		Protein:  strings.TrimSpace(fields[2]),
		Fat:      strings.TrimSpace(fields[3]),
		Calories: strings.TrimSpace(fields[4]),
	}, nil
}
