package h264

// PicSize is the coded picture size in pixels.
type PicSize struct {
	Width  int
	Height int
}

func (s PicSize) IsEmpty() bool { return s.Width <= 0 || s.Height <= 0 }

// RefPicture describes one picture slot in the per-picture reference
// array or a reference list as handed to the hardware. A neutral (all
// invalid) descriptor stands in for missing references.
type RefPicture struct {
	Surface             SurfaceID
	FrameIdx            int32
	TopFieldOrderCnt    int32
	BottomFieldOrderCnt int32
	ShortTermRef        bool
	LongTermRef         bool
	Invalid             bool
}

// neutralRefPicture returns the descriptor used for empty reference
// slots and for references whose surface went missing.
func neutralRefPicture() RefPicture {
	return RefPicture{Surface: InvalidSurfaceID, Invalid: true}
}

// PictureParams is the per-picture parameter submission, mirroring the
// SPS/PPS-derived fields a stateless hardware slice decoder wants.
type PictureParams struct {
	PictureWidthInMbsMinus1  int
	PictureHeightInMbsMinus1 int
	BitDepthLumaMinus8       int
	BitDepthChromaMinus8     int

	ChromaFormatIdc            int
	GapsInFrameNumValueAllowed bool
	FrameMbsOnlyFlag           bool
	MbAdaptiveFrameFieldFlag   bool
	Direct8x8InferenceFlag     bool
	MinLumaBiPredSize8x8       bool
	Log2MaxFrameNumMinus4      int
	PicOrderCntType            int
	Log2MaxPicOrderCntLsb4     int
	DeltaPicOrderAlwaysZero    bool

	NumSliceGroupsMinus1      int
	PicInitQpMinus26          int32
	PicInitQsMinus26          int32
	ChromaQpIndexOffset       int32
	SecondChromaQpIndexOffset int32

	EntropyCodingModeFlag      bool
	WeightedPredFlag           bool
	WeightedBipredIdc          int
	Transform8x8ModeFlag       bool
	ConstrainedIntraPredFlag   bool
	PicOrderPresentFlag        bool
	DeblockingFilterControl    bool
	RedundantPicCntPresentFlag bool
	ReferencePicFlag           bool

	FrameNum        int32
	CurrPic         RefPicture
	ReferenceFrames [DpbMaxSize]RefPicture
	NumRefFrames    int
}

// IQMatrix carries the active inverse-quantization scaling lists.
type IQMatrix struct {
	ScalingList4x4 [6][16]byte
	ScalingList8x8 [2][64]byte
}

// SliceParams is the per-slice parameter submission.
type SliceParams struct {
	SliceDataSize      int
	SliceDataBitOffset int

	FirstMbInSlice          int
	SliceType               int
	DirectSpatialMvPredFlag bool
	NumRefIdxL0ActiveMinus1 int
	NumRefIdxL1ActiveMinus1 int
	CabacInitIdc            int
	SliceQpDelta            int32
	DisableDeblockingIdc    int
	SliceAlphaC0OffsetDiv2  int32
	SliceBetaOffsetDiv2     int32

	LumaLog2WeightDenom   int
	ChromaLog2WeightDenom int
	LumaWeightL0Flag      bool
	ChromaWeightL0Flag    bool
	LumaWeightL0          [RefListSize]int32
	LumaOffsetL0          [RefListSize]int32
	ChromaWeightL0        [RefListSize][2]int32
	ChromaOffsetL0        [RefListSize][2]int32
	LumaWeightL1Flag      bool
	ChromaWeightL1Flag    bool
	LumaWeightL1          [RefListSize]int32
	LumaOffsetL1          [RefListSize]int32
	ChromaWeightL1        [RefListSize][2]int32
	ChromaOffsetL1        [RefListSize][2]int32

	RefPicList0 [RefListSize]RefPicture
	RefPicList1 [RefListSize]RefPicture
}

// Codec is the hardware driver capability the decoder submits work to.
// Submissions for one picture are buffered by the implementation and
// committed by ExecuteForSurface, which may block for the duration of
// one picture decode.
type Codec interface {
	SubmitPictureParams(params *PictureParams) error
	SubmitIQMatrix(matrix *IQMatrix) error
	SubmitSliceParams(params *SliceParams) error
	SubmitSliceData(data []byte) error
	ExecuteForSurface(surface SurfaceID) error
	Reset() error
	Release() error
}

// NullCodec discards all submissions. It backs the CLI dry-run mode and
// tests that only exercise the scheduling core.
type NullCodec struct{}

func (NullCodec) SubmitPictureParams(*PictureParams) error { return nil }
func (NullCodec) SubmitIQMatrix(*IQMatrix) error           { return nil }
func (NullCodec) SubmitSliceParams(*SliceParams) error     { return nil }
func (NullCodec) SubmitSliceData([]byte) error             { return nil }
func (NullCodec) ExecuteForSurface(SurfaceID) error        { return nil }
func (NullCodec) Reset() error                             { return nil }
func (NullCodec) Release() error                           { return nil }
