package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/suPer8Hu/healthchat/internal/gateway"
)

func newPredictCmd() *cobra.Command {
	var age, weight, bp, heartRate string
	cmd := &cobra.Command{
		Use:     "predict",
		Short:   "Estimate diabetes and hypertension risk from four readings",
		Example: "  healthchat predict --age 45 --weight 90 --bp 140/90 --heart-rate 80",
		RunE: func(cmd *cobra.Command, _ []string) error {
			m := gateway.HealthMetrics{
				Age:           gateway.Reading(strings.TrimSpace(age)),
				Weight:        gateway.Reading(strings.TrimSpace(weight)),
				BloodPressure: gateway.Reading(strings.TrimSpace(bp)),
				HeartRate:     gateway.Reading(strings.TrimSpace(heartRate)),
			}
			if missing := m.Missing(); len(missing) > 0 {
				return fmt.Errorf("missing readings: %s", strings.Join(missing, ", "))
			}

			ra, err := newRelayClient().Predict(cmd.Context(), m)
			if err != nil {
				var mre *gateway.MalformedReplyError
				if errors.As(err, &mre) {
					return fmt.Errorf("the model returned an unusable answer, try again")
				}
				return err
			}
			printAssessment(cmd.OutOrStdout(), ra)
			return nil
		},
	}
	cmd.Flags().StringVar(&age, "age", "", "age in years")
	cmd.Flags().StringVar(&weight, "weight", "", "weight in kg")
	cmd.Flags().StringVar(&bp, "bp", "", "blood pressure, e.g. 120/80")
	cmd.Flags().StringVar(&heartRate, "heart-rate", "", "resting heart rate in bpm")
	return cmd
}
