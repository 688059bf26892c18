package main

import (
	"context"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/nextlevelbuilder/acontext/pkg/agent/sopabstract"
	"github.com/nextlevelbuilder/acontext/pkg/agent/spaceconstruct"
	"github.com/nextlevelbuilder/acontext/pkg/bus"
	"github.com/nextlevelbuilder/acontext/pkg/store"
)

// sopAbstractHandler routes session.task_complete events to the SOP
// Abstraction Agent (spec §2: "framework routes each to H"), then
// publishes sop.complete for Space Construction to pick up.
func sopAbstractHandler(
	tasks *store.TaskStore,
	messages *store.MessageStore,
	sessions *store.SessionStore,
	agent *sopabstract.Agent,
	precedingSize int,
	busConn *bus.Bus,
) bus.Handler[bus.NewTaskComplete] {
	return func(ctx context.Context, body bus.NewTaskComplete, msg *nats.Msg) error {
		sess, err := sessions.FetchSession(ctx, body.SessionID)
		if err != nil {
			return err
		}
		if sess.SpaceID == nil {
			slog.Info("sop-abstract: session has no linked space, skipping", "session_id", body.SessionID)
			return nil
		}

		task, err := tasks.FetchTask(ctx, body.TaskID)
		if err != nil {
			return err
		}
		preceding, err := tasks.ListPrecedingTasks(ctx, body.SessionID, task.Order, precedingSize)
		if err != nil {
			return err
		}
		raw, err := messages.ListMessagesByIDs(ctx, task.RawMessageIDs)
		if err != nil {
			return err
		}

		sop, err := agent.Run(ctx, task, preceding, raw)
		if err != nil {
			return err
		}
		if sop == nil {
			return nil
		}

		event := bus.SOPComplete{
			ProjectID: body.ProjectID,
			SpaceID:   *sess.SpaceID,
			TaskID:    body.TaskID,
			SOPData: bus.SOPData{
				UseWhen:     sop.UseWhen,
				Preferences: sop.Preferences,
				ToolSOPs:    toWireSteps(sop.ToolSOPs),
			},
		}
		return bus.Publish(ctx, busConn, bus.ExchangeSpaceSOP, event)
	}
}

func toWireSteps(steps []store.SOPStep) []bus.SOPDataStep {
	out := make([]bus.SOPDataStep, len(steps))
	for i, s := range steps {
		out[i] = bus.SOPDataStep{ToolName: s.ToolName, Action: s.Action}
	}
	return out
}

// spaceConstructHandler routes sop.complete events to the Space
// Construction Agent (spec §2: "framework routes each to I"). The agent
// itself marks the originating task space_digested once the candidate is
// actually filed.
func spaceConstructHandler(agent *spaceconstruct.Agent) bus.Handler[bus.SOPComplete] {
	return func(ctx context.Context, body bus.SOPComplete, msg *nats.Msg) error {
		candidate := spaceconstruct.Candidate{
			TaskID: body.TaskID,
			SOP: store.SOPData{
				UseWhen:     body.SOPData.UseWhen,
				Preferences: body.SOPData.Preferences,
				ToolSOPs:    fromWireSteps(body.SOPData.ToolSOPs),
			},
		}
		return agent.Run(ctx, body.ProjectID, body.SpaceID, []spaceconstruct.Candidate{candidate})
	}
}

func fromWireSteps(steps []bus.SOPDataStep) []store.SOPStep {
	out := make([]store.SOPStep, len(steps))
	for i, s := range steps {
		out[i] = store.SOPStep{ToolName: s.ToolName, Action: s.Action}
	}
	return out
}
