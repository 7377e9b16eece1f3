package journal

import (
	"context"

	"mendbots/server/logging"
	lifecyclelog "mendbots/server/logging/lifecycle"
	repairlog "mendbots/server/logging/repair"
	supplylog "mendbots/server/logging/supply"
)

// Recorder bridges the event bus into a Store. It implements logging.Sink,
// so the router fans events out to it like any other sink and the tick
// loop stays unaware of persistence.
type Recorder struct {
	store *Store
}

func NewRecorder(store *Store) *Recorder {
	return &Recorder{store: store}
}

func (r *Recorder) Write(event logging.Event) error {
	if r == nil || r.store == nil {
		return nil
	}
	switch event.Type {
	case repairlog.EventStructureRepaired:
		payload, ok := event.Payload.(repairlog.StructureRepairedPayload)
		if !ok {
			return nil
		}
		r.store.RecordRepair(RepairRow{
			Tick:        event.Tick,
			BotID:       event.Actor.ID,
			StructureID: payload.StructureID,
			Kind:        payload.Kind,
			Amount:      payload.Amount,
			HealthAfter: payload.HealthAfter,
		})

	case supplylog.EventPacksLoaded:
		payload, ok := event.Payload.(supplylog.PacksLoadedPayload)
		if !ok {
			return nil
		}
		r.store.RecordSupply(SupplyRow{
			Tick:           event.Tick,
			BotID:          event.Actor.ID,
			Event:          "packs_loaded",
			ContainerID:    payload.ContainerID,
			ContainerPacks: payload.ContainerPacks,
			InventoryPacks: payload.InventoryPacks,
			CapacityAfter:  payload.CapacityAfter,
		})

	case supplylog.EventPoolExhausted:
		payload, ok := event.Payload.(supplylog.PoolExhaustedPayload)
		if !ok {
			return nil
		}
		r.store.RecordSupply(SupplyRow{
			Tick:      event.Tick,
			BotID:     event.Actor.ID,
			Event:     "pool_exhausted",
			Requested: payload.Requested,
		})

	case lifecyclelog.EventBotDeployed:
		payload, ok := event.Payload.(lifecyclelog.BotDeployedPayload)
		if !ok {
			return nil
		}
		r.store.RecordSession(SessionRow{
			Tick:    event.Tick,
			OwnerID: payload.OwnerID,
			BotID:   event.Actor.ID,
			Event:   "deployed",
		})

	case lifecyclelog.EventBotRecalled:
		payload, ok := event.Payload.(lifecyclelog.BotRecalledPayload)
		if !ok {
			return nil
		}
		r.store.RecordSession(SessionRow{
			Tick:    event.Tick,
			OwnerID: payload.OwnerID,
			BotID:   event.Actor.ID,
			Event:   "recalled",
			Reason:  payload.Reason,
		})
	}
	return nil
}

func (r *Recorder) Close(ctx context.Context) error {
	if r == nil || r.store == nil {
		return nil
	}
	return r.store.Close()
}

var _ logging.Sink = (*Recorder)(nil)
