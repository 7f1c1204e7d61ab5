package drmu

import "unsafe"

// The structures below mirror the Linux kernel's drm.h/drm_mode.h uAPI
// structs field-for-field. Field names follow the kernel's snake_case by
// convention for this file only (it exists to match an external binary
// layout byte-for-byte); everything above package drmu uses normal Go
// naming.

type SetClientCap struct {
	Capability uint64
	Value      uint64
}

type GetCap struct {
	Capability uint64
	Value      uint64
}

type ModeCardRes struct {
	FbIDPtr        uint64
	CrtcIDPtr      uint64
	ConnectorIDPtr uint64
	EncoderIDPtr   uint64
	CountFbs       uint32
	CountCrtcs     uint32
	CountConnectors uint32
	CountEncoders  uint32
	MinWidth       uint32
	MaxWidth       uint32
	MinHeight      uint32
	MaxHeight      uint32
}

type ModeGetEncoder struct {
	EncoderID      uint32
	EncoderType    uint32
	CrtcID         uint32
	PossibleCrtcs  uint32
	PossibleClones uint32
}

type ModeGetConnector struct {
	EncodersPtr   uint64
	ModesPtr      uint64
	PropsPtr      uint64
	PropValuesPtr uint64

	CountModes    uint32
	CountProps    uint32
	CountEncoders uint32

	EncoderID      uint32
	ConnectorID    uint32
	ConnectorType  uint32
	ConnectorTypeID uint32

	Connection      uint32
	MmWidth         uint32
	MmHeight        uint32
	Subpixel        uint32

	Pad uint32
}

type ModeModeInfo struct {
	Clock uint32

	Hdisplay   uint16
	Hsyncstart uint16
	Hsyncend   uint16
	Htotal     uint16
	Hskew      uint16

	Vdisplay   uint16
	Vsyncstart uint16
	Vsyncend   uint16
	Vtotal     uint16
	Vscan      uint16

	Vrefresh uint32

	Flags uint32
	Type  uint32

	Name [32]byte
}

type ModeCrtc struct {
	SetConnectorsPtr uint64
	CountConnectors  uint32

	CrtcID uint32
	FbID   uint32

	X uint32
	Y uint32

	GammaSize uint32
	ModeValid uint32
	Mode      ModeModeInfo
}

type ModeGetPlaneRes struct {
	PlaneIDPtr uint64
	CountPlanes uint32
}

type ModeGetPlane struct {
	PlaneID uint32

	CrtcID uint32
	FbID   uint32

	PossibleCrtcs uint32
	GammaSize     uint32

	CountFormatTypes uint32
	FormatTypePtr    uint64
}

type ModeObjGetProperties struct {
	PropsPtr      uint64
	PropValuesPtr uint64
	CountProps    uint32
	ObjID         uint32
	ObjType       uint32
}

type ModeObjSetProperty struct {
	Value   uint64
	PropID  uint32
	ObjID   uint32
	ObjType uint32
}

type ModeGetProperty struct {
	ValuesPtr uint64
	EnumBlobPtr uint64

	PropID uint32
	Flags  uint32
	Name   [32]byte

	CountValues   uint32
	CountEnumBlobs uint32
}

type ModeGetBlob struct {
	BlobID uint32
	Length uint32
	Data   uint64
}

type ModeCreateBlob struct {
	Data   uint64
	Length uint32
	BlobID uint32
}

type ModeDestroyBlob struct {
	BlobID uint32
}

type ModeFBCmd struct {
	FbID   uint32
	Width  uint32
	Height uint32
	Pitch  uint32
	Bpp    uint32
	Depth  uint32
	Handle uint32
}

// ModeFBCmd2 is used for DRM_IOCTL_MODE_ADDFB2, the only framebuffer-add
// variant this module issues (AddFB2WithModifiers, see bufferreg).
type ModeFBCmd2 struct {
	FbID   uint32
	Width  uint32
	Height uint32
	PixelFormat uint32
	Flags  uint32

	Handles [4]uint32
	Pitches [4]uint32
	Offsets [4]uint32
	Modifier [4]uint64
}

// AddFB2 flag enabling the Modifier array.
const ModeFBModifiers = 1 << 1

type ModeSetPlane struct {
	PlaneID uint32
	CrtcID  uint32
	FbID    uint32
	Flags   uint32

	CrtcX int32
	CrtcY int32
	CrtcW uint32
	CrtcH uint32

	SrcX uint32
	SrcY uint32
	SrcW uint32
	SrcH uint32
}

type ModeCrtcPageFlip struct {
	CrtcID   uint32
	FbID     uint32
	Flags    uint32
	Reserved uint32
	UserData uint64
}

type ModeAtomic struct {
	Flags uint32

	CountObjs    uint32
	ObjsPtr      uint64
	CountPropsPtr uint64
	ObjPropsPtr  uint64
	PropValuesPtr uint64

	Reserved uint64
	UserData uint64
}

type ModeCreateDumb struct {
	Height uint32
	Width  uint32
	Bpp    uint32
	Flags  uint32

	Handle uint32
	Pitch  uint32
	Size   uint64
}

type ModeMapDumb struct {
	Handle uint32
	Pad    uint32
	Offset uint64
}

type ModeDestroyDumb struct {
	Handle uint32
}

type ModeCursor struct {
	Flags  uint32
	CrtcID uint32
	X      int32
	Y      int32
	Width  uint32
	Height uint32
	Handle uint32
}

type ModeCursor2 struct {
	Flags  uint32
	CrtcID uint32
	X      int32
	Y      int32
	Width  uint32
	Height uint32
	Handle uint32
	HotX   int32
	HotY   int32
}

// Event header as delivered by reads on the DRM fd; EventVblank and
// EventFlipComplete both follow this header.
type Event struct {
	Type   uint32
	Length uint32
}

type EventVblank struct {
	Base        Event
	UserData    uint64
	TvSec       uint32
	TvUsec      uint32
	SequenceNum uint32
	CrtcID      uint32 // only present for EventFlipComplete
}

const (
	EventVblankType       = 0x01
	EventFlipCompleteType = 0x02
)

var (
	sizeofSetClientCap        = unsafe.Sizeof(SetClientCap{})
	sizeofGetCap              = unsafe.Sizeof(GetCap{})
	sizeofModeCardRes         = unsafe.Sizeof(ModeCardRes{})
	sizeofModeGetEncoder      = unsafe.Sizeof(ModeGetEncoder{})
	sizeofModeGetConnector    = unsafe.Sizeof(ModeGetConnector{})
	sizeofModeCrtc            = unsafe.Sizeof(ModeCrtc{})
	sizeofModeGetPlaneRes     = unsafe.Sizeof(ModeGetPlaneRes{})
	sizeofModeGetPlane        = unsafe.Sizeof(ModeGetPlane{})
	sizeofModeObjGetProperties = unsafe.Sizeof(ModeObjGetProperties{})
	sizeofModeObjSetProperty  = unsafe.Sizeof(ModeObjSetProperty{})
	sizeofModeGetProperty     = unsafe.Sizeof(ModeGetProperty{})
	sizeofModeGetBlob         = unsafe.Sizeof(ModeGetBlob{})
	sizeofModeCreateBlob      = unsafe.Sizeof(ModeCreateBlob{})
	sizeofModeDestroyBlob     = unsafe.Sizeof(ModeDestroyBlob{})
	sizeofModeFBCmd           = unsafe.Sizeof(ModeFBCmd{})
	sizeofModeFBCmd2          = unsafe.Sizeof(ModeFBCmd2{})
	sizeofModeSetPlane        = unsafe.Sizeof(ModeSetPlane{})
	sizeofModeCrtcPageFlip    = unsafe.Sizeof(ModeCrtcPageFlip{})
	sizeofModeAtomic          = unsafe.Sizeof(ModeAtomic{})
	sizeofModeCreateDumb      = unsafe.Sizeof(ModeCreateDumb{})
	sizeofModeMapDumb         = unsafe.Sizeof(ModeMapDumb{})
	sizeofModeDestroyDumb     = unsafe.Sizeof(ModeDestroyDumb{})
	sizeofModeCursor          = unsafe.Sizeof(ModeCursor{})
	sizeofModeCursor2         = unsafe.Sizeof(ModeCursor2{})
)
