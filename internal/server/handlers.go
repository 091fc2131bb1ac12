package server

import (
	"github.com/flatmapit/printscp/internal/dimse"
	"github.com/flatmapit/printscp/internal/pdu"
	"github.com/flatmapit/printscp/internal/printstore"
	"github.com/flatmapit/printscp/internal/sop"
	"github.com/flatmapit/printscp/internal/storescp"
)

// registerHandlers wires the five Normalized operations plus C-ECHO and
// C-STORE into dispatcher, per 4.C's routing table. C-STORE is always
// registered.
func registerHandlers(dispatcher *dimse.Dispatcher, store *printstore.Store, explicitVR bool) {
	dispatcher.RegisterHandler(dimse.CEchoRQ, handleEcho)
	dispatcher.RegisterHandler(dimse.NCreateRQ, handleNCreate(store, explicitVR))
	dispatcher.RegisterHandler(dimse.NSetRQ, handleNSet(store, explicitVR))
	dispatcher.RegisterHandler(dimse.NActionRQ, handleNAction(store))
	dispatcher.RegisterHandler(dimse.NDeleteRQ, handleNDelete(store))
	dispatcher.RegisterHandler(dimse.NGetRQ, handleNGet(store, explicitVR))
	dispatcher.RegisterHandler(dimse.CStoreRQ, handleCStore(store))
}

// handleCStore implements the optional Storage SOP Class fallback
// (§6): it ingests the pushed data set's pixel data under its own SOP
// Instance UID, later reachable via Store.PopulateImageBoxFromStorage.
func handleCStore(store *printstore.Store) dimse.HandlerFunc {
	return func(msg *dimse.Message) (uint16, string, []byte, error) {
		uid := msg.Command.AffectedSOPInstanceUID
		if len(msg.Data) == 0 {
			return dimse.StatusInvalidAttributeValue, uid, nil, nil
		}
		meta, pixelData, err := storescp.Ingest(msg.Data)
		if err != nil {
			return dimse.StatusProcessingFailure, uid, nil, err
		}
		status := store.StoreInstance(uid, *meta, pixelData)
		return status, uid, nil, nil
	}
}

func handleEcho(msg *dimse.Message) (uint16, string, []byte, error) {
	return dimse.StatusSuccess, "", nil, nil
}

func handleNCreate(store *printstore.Store, explicitVR bool) dimse.HandlerFunc {
	return func(msg *dimse.Message) (uint16, string, []byte, error) {
		attrs := pdu.NewDataset()
		if len(msg.Data) > 0 {
			var err error
			attrs, err = pdu.DecodeDataset(msg.Data, explicitVR)
			if err != nil {
				return dimse.StatusInvalidAttributeValue, msg.Command.AffectedSOPInstanceUID, nil, err
			}
		}

		instanceUID := msg.Command.AffectedSOPInstanceUID
		if instanceUID == "" {
			instanceUID = printstore.NewUID()
		}

		status, effective := store.Create(msg.Command.AffectedSOPClassUID, instanceUID, attrs)
		if dimse.IsFailure(status) {
			return status, instanceUID, nil, nil
		}
		return status, instanceUID, pdu.EncodeDataset(effective, explicitVR), nil
	}
}

func handleNSet(store *printstore.Store, explicitVR bool) dimse.HandlerFunc {
	return func(msg *dimse.Message) (uint16, string, []byte, error) {
		uid := msg.Command.RequestedSOPInstanceUID
		if uid == "" {
			uid = msg.Command.AffectedSOPInstanceUID
		}
		mods := pdu.NewDataset()
		if len(msg.Data) > 0 {
			var err error
			mods, err = pdu.DecodeDataset(msg.Data, explicitVR)
			if err != nil {
				return dimse.StatusInvalidAttributeValue, uid, nil, err
			}
		}
		status := store.Set(uid, mods)
		return status, uid, nil, nil
	}
}

func handleNAction(store *printstore.Store) dimse.HandlerFunc {
	return func(msg *dimse.Message) (uint16, string, []byte, error) {
		uid := msg.Command.RequestedSOPInstanceUID
		if uid == "" {
			uid = msg.Command.AffectedSOPInstanceUID
		}
		status, jobUID := store.Action(uid, msg.Command.ActionTypeID)
		return status, jobUID, nil, nil
	}
}

func handleNDelete(store *printstore.Store) dimse.HandlerFunc {
	return func(msg *dimse.Message) (uint16, string, []byte, error) {
		uid := msg.Command.RequestedSOPInstanceUID
		if uid == "" {
			uid = msg.Command.AffectedSOPInstanceUID
		}
		status := store.Delete(uid)
		return status, uid, nil, nil
	}
}

func handleNGet(store *printstore.Store, explicitVR bool) dimse.HandlerFunc {
	return func(msg *dimse.Message) (uint16, string, []byte, error) {
		uid := msg.Command.RequestedSOPInstanceUID
		if uid == "" {
			uid = msg.Command.AffectedSOPInstanceUID
		}
		if uid == "" {
			uid = sop.PrinterInstanceUID
		}
		status, ds := store.Get(uid)
		if dimse.IsFailure(status) {
			return status, uid, nil, nil
		}
		return status, uid, pdu.EncodeDataset(ds, explicitVR), nil
	}
}
