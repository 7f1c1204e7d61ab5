package drmu

// Client capabilities, passed to DRM_IOCTL_SET_CLIENT_CAP.
const (
	ClientCapStereo3D         = 1
	ClientCapUniversalPlanes  = 2
	ClientCapAtomic           = 3
	ClientCapAspectRatio      = 4
	ClientCapWritebackConnect = 5
)

// Generic capabilities, queried via DRM_IOCTL_GET_CAP.
const (
	CapDumbBuffer          = 0x1
	CapCursorWidth         = 0x8
	CapCursorHeight        = 0x9
	CapAddFB2Modifiers     = 0x10
	CapTimestampMonotonic  = 0x6
	CapAsyncPageFlip       = 0x7
)

// Object types, used both standalone and as the obj_type field of
// DRM_IOCTL_MODE_OBJ_GETPROPERTIES.
const (
	ModeObjectCrtc      = 0xcccccccc
	ModeObjectConnector = 0xc0c0c0c0
	ModeObjectEncoder   = 0xe0e0e0e0
	ModeObjectMode      = 0xdededede
	ModeObjectProperty  = 0xb0b0b0b0
	ModeObjectFB        = 0xfbfbfbfb
	ModeObjectBlob      = 0xbbbbbbbb
	ModeObjectPlane     = 0xeeeeeeee
)

// Plane types, reported via the immutable "type" property.
const (
	PlaneTypeOverlay = 0
	PlaneTypePrimary = 1
	PlaneTypeCursor  = 2
)

// Connector types (drm_mode.h DRM_MODE_CONNECTOR_*), the subset this
// module's mode-selection heuristics (kms.SelectMode) care about.
const (
	ConnectorUnknown  = 0
	ConnectorDSI      = 16
	ConnectorHDMIA    = 11
	ConnectorHDMIB    = 12
	ConnectorDPI      = 17
	ConnectorVirtual  = 15
)

// Connector/encoder/CRTC status values.
const (
	ModeConnected         = 1
	ModeDisconnected      = 2
	ModeUnknownConnection = 3
)

// drm_mode_modeinfo.type flags.
const (
	ModeTypePreferred = 1 << 3
)

// drm_mode_modeinfo.flags (subset).
const (
	ModeFlagInterlace = 1 << 4
)

// Well-known property names resolved once per plane/CRTC/connector object.
const (
	PropCrtcID     = "CRTC_ID"
	PropFBID       = "FB_ID"
	PropSrcX       = "SRC_X"
	PropSrcY       = "SRC_Y"
	PropSrcW       = "SRC_W"
	PropSrcH       = "SRC_H"
	PropCrtcX      = "CRTC_X"
	PropCrtcY      = "CRTC_Y"
	PropCrtcW      = "CRTC_W"
	PropCrtcH      = "CRTC_H"
	PropZpos       = "zpos"
	PropRotation   = "rotation"
	PropType       = "type"
	PropInFormats  = "IN_FORMATS"
	PropModeID     = "MODE_ID"
	PropActive     = "ACTIVE"
	PropConnectorID = "CRTC_ID" // connector's link to CRTC shares the name CRTC_ID
)

// Atomic commit flags, passed to DRM_IOCTL_MODE_ATOMIC and (the subset
// that applies) to the legacy SETCRTC/PAGE_FLIP ioctls.
const (
	ModeAtomicTestOnly = 0x0100
	ModeAtomicNonblock = 0x0200
	ModeAtomicAllowModeset = 0x0400

	ModePageFlipEvent = 0x01
	ModePageFlipAsync = 0x02

	ModeCursorBO   = 1 << 0
	ModeCursorMove = 1 << 1
)

// Framebuffer format modifiers sentinel.
const FormatModNone uint64 = 0

// Fourcc pixel formats, as defined by drm_fourcc.h. Only the formats
// this module programs or matches against are named here.
const (
	FormatARGB8888 = 'A' | 'R'<<8 | '2'<<16 | '4'<<24
	FormatXRGB8888 = 'X' | 'R'<<8 | '2'<<16 | '4'<<24
)

// Ioctl request numbers. Computed the same way the kernel's own
// DRM_IOWR/DRM_IOW/DRM_IO macros are, rather than hardcoded as opaque
// hex — see ioc/iow/ior/iowr in ioctl.go.
var (
	ReqSetClientCap          = iow(0x0d, sizeofSetClientCap)
	ReqGetCap                = iowr(0x0c, sizeofGetCap)
	ReqModeGetResources      = iowr(0xa0, sizeofModeCardRes)
	ReqModeGetCrtc           = iowr(0xa1, sizeofModeCrtc)
	ReqModeSetCrtc           = iowr(0xa2, sizeofModeCrtc)
	ReqModeCursor            = iowr(0xa3, sizeofModeCursor)
	ReqModeGetEncoder        = iowr(0xa6, sizeofModeGetEncoder)
	ReqModeGetConnector      = iowr(0xa7, sizeofModeGetConnector)
	ReqModeGetProperty       = iowr(0xaa, sizeofModeGetProperty)
	ReqModeGetPropBlob       = iowr(0xac, sizeofModeGetBlob)
	ReqModeAddFB             = iowr(0xae, sizeofModeFBCmd)
	ReqModeRmFB              = iowr(0xaf, 4)
	ReqModePageFlip          = iowr(0xb0, sizeofModeCrtcPageFlip)
	ReqModeCreateDumb        = iowr(0xb2, sizeofModeCreateDumb)
	ReqModeMapDumb           = iowr(0xb3, sizeofModeMapDumb)
	ReqModeDestroyDumb       = iowr(0xb4, sizeofModeDestroyDumb)
	ReqModeGetPlaneResources = iowr(0xb5, sizeofModeGetPlaneRes)
	ReqModeGetPlane          = iowr(0xb6, sizeofModeGetPlane)
	ReqModeSetPlane          = iowr(0xb7, sizeofModeSetPlane)
	ReqModeAddFB2            = iowr(0xb8, sizeofModeFBCmd2)
	ReqModeObjGetProperties  = iowr(0xb9, sizeofModeObjGetProperties)
	ReqModeObjSetProperty    = iowr(0xba, sizeofModeObjSetProperty)
	ReqModeCursor2           = iowr(0xbb, sizeofModeCursor2)
	ReqModeAtomic            = iowr(0xbc, sizeofModeAtomic)
	ReqModeCreatePropBlob    = iowr(0xbd, sizeofModeCreateBlob)
	ReqModeDestroyPropBlob   = iowr(0xbe, sizeofModeDestroyBlob)
)
