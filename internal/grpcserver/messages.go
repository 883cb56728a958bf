package grpcserver

import "github.com/device-model/server/internal/wire"

// Request/response envelopes for every RPC in spec §4.7/§6. These are
// plain JSON-tagged structs carried by jsonCodec — the stand-in for
// generated protobuf messages (see codec.go).

type Empty struct{}

type SlotOidRequest struct {
	Slot uint32 `json:"slot"`
	Oid  string `json:"oid"`
}

type GetValueResponse struct {
	Value *wire.Value `json:"value"`
}

type SetValueRequest struct {
	Slot   uint32      `json:"slot"`
	Oid    string      `json:"oid"`
	Value  *wire.Value `json:"value"`
}

type MultiSetValueRequest struct {
	Slot   uint32                     `json:"slot"`
	Values []wire.SetValuePayload     `json:"values"`
}

type GetParamResponse struct {
	Param wire.ParamComponent `json:"param"`
}

type DeviceRequest struct {
	Slot          uint32          `json:"slot"`
	DetailLevel   wire.DetailLevel `json:"detail_level"`
	Shallow       bool            `json:"shallow"`
	SubscribedOids []string       `json:"subscribed_oids"`
}

type ParamInfoRequest struct {
	Slot      uint32 `json:"slot"`
	Oid       string `json:"oid"`
	Recursive bool   `json:"recursive"`
	Basic     bool   `json:"basic"`
}

type ParamInfoResponse struct {
	Info wire.ParamInfo `json:"info"`
}

type ExecuteCommandRequest struct {
	Slot    uint32      `json:"slot"`
	Oid     string      `json:"oid"`
	Value   *wire.Value `json:"value"`
	Respond bool        `json:"respond"`
}

type CommandResponse struct {
	Response   *wire.Value       `json:"response,omitempty"`
	Exception  *CommandException `json:"exception,omitempty"`
	NoResponse bool              `json:"no_response,omitempty"`
}

type CommandException struct {
	Type    string `json:"type"`
	Details string `json:"details"`
}

type LanguagePackRequest struct {
	Slot uint32 `json:"slot"`
	ID   string `json:"id"`
}

type LanguagePackResponse struct {
	Pack wire.LanguagePackWire `json:"pack"`
}

type AddLanguageRequest struct {
	Slot uint32                `json:"slot"`
	ID   string                `json:"id"`
	Name string                `json:"name"`
	Pack wire.LanguagePackWire `json:"pack"`
}

type LanguagesRequest struct {
	Slot uint32 `json:"slot"`
}

type LanguagesResponse struct {
	Languages []string `json:"languages"`
}

type SlotListResponse struct {
	Slots []uint32 `json:"slots"`
}

type UpdateSubscriptionsRequest struct {
	Slot   uint32   `json:"slot"`
	Add    []string `json:"add"`
	Remove []string `json:"remove"`
}

type ConnectRequest struct {
	Slot        uint32          `json:"slot"`
	DetailLevel wire.DetailLevel `json:"detail_level"`
	Force       bool            `json:"force"`
}

type PushUpdatesResponse struct {
	Updates wire.PushUpdates `json:"updates"`
}

type DeviceComponentResponse struct {
	Component wire.DeviceComponent `json:"component"`
}
