package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/drakos74/hybrid-digits/internal/model"
)

// loop is the part of the session the terminal drives.
type loop interface {
	Next() (model.Sample, error)
	Feedback(id string, kind model.Feedback) (model.Sample, error)
	Verify(id string, label model.Label) (model.Sample, error)
	Pending() []model.Sample
	Stats() model.Snapshot
}

const ramp = " .:-=+*#%@"

// render draws the image with one character per pixel.
func render(image model.Image) string {
	var sb strings.Builder
	for row := 0; row < model.ImageSide; row++ {
		for col := 0; col < model.ImageSide; col++ {
			v := image.At(row, col)
			i := int(v * float64(len(ramp)-1))
			if i < 0 {
				i = 0
			} else if i >= len(ramp) {
				i = len(ramp) - 1
			}
			sb.WriteByte(ramp[i])
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

const help = `commands:
  y          the prediction is correct
  n          the prediction is wrong
  u          not sure, keep the digit for later
  p          list the digits waiting for verification
  v <i> <d>  verify pending digit i as digit d
  s          statistics
  q          quit`

// interact runs the feedback loop on the given streams until quit or end of input.
func interact(session loop, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintln(out, help)

	var current *model.Sample
	for {
		if current == nil {
			sample, err := session.Next()
			if err != nil {
				return err
			}
			current = &sample
			fmt.Fprint(out, render(sample.Image))
			fmt.Fprintf(out, "prediction: %d (confidence %.2f, cluster %d)\n", sample.PredictedLabel, sample.Confidence, sample.ClusterID)
		}
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch cmd := strings.ToLower(fields[0]); cmd {
		case "q", "quit", "exit":
			return nil
		case "p":
			pending := session.Pending()
			if len(pending) == 0 {
				fmt.Fprintln(out, "nothing to verify")
			}
			for i, s := range pending {
				fmt.Fprintf(out, "%d: predicted %d, true label %d\n", i, s.PredictedLabel, s.TrueLabel)
			}
		case "s":
			b, err := json.MarshalIndent(session.Stats(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
		case "v":
			if err := verify(session, fields[1:]); err != nil {
				fmt.Fprintf(out, "could not verify: %v\n", err)
				continue
			}
			fmt.Fprintln(out, "verified")
		default:
			kind, err := model.ParseFeedback(cmd)
			if err != nil || kind == model.Verified || kind == model.Pending {
				fmt.Fprintln(out, help)
				continue
			}
			if _, err := session.Feedback(current.ID, kind); err != nil {
				fmt.Fprintf(out, "could not apply feedback: %v\n", err)
			}
			current = nil
		}
	}
}

func verify(session loop, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: v <pending index> <digit>")
	}
	i, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid index '%s'", args[0])
	}
	d, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid digit '%s'", args[1])
	}
	pending := session.Pending()
	if i < 0 || i >= len(pending) {
		return fmt.Errorf("no pending digit %d", i)
	}
	_, err = session.Verify(pending[i].ID, model.Label(d))
	return err
}
