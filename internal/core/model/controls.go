package model

type Tone string

const (
	ToneSolemn   Tone = "solemn"
	ToneLyrical  Tone = "lyrical"
	ToneTense    Tone = "tense"
	ToneWry      Tone = "wry"
	ToneMythic   Tone = "mythic"
	ToneGrounded Tone = "grounded"
	ToneNoir     Tone = "noir"
)

type ViolenceLevel string

const (
	ViolenceNone     ViolenceLevel = "none"
	ViolenceImplied  ViolenceLevel = "implied"
	ViolenceModerate ViolenceLevel = "moderate"
	ViolenceGraphic  ViolenceLevel = "graphic"
)

type TwistLevel string

const (
	TwistNone     TwistLevel = "none"
	TwistSubtle   TwistLevel = "subtle"
	TwistModerate TwistLevel = "moderate"
	TwistHigh     TwistLevel = "high"
)

// Controls steer a single generation call and are never persisted.
// Empty fields mean "unset".
type Controls struct {
	Genre         Genre         `json:"genre,omitempty"`
	Tone          Tone          `json:"tone,omitempty"`
	ViolenceLevel ViolenceLevel `json:"violenceLevel,omitempty"`
	TwistLevel    TwistLevel    `json:"twistLevel,omitempty"`
}
