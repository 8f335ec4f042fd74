package h264

import (
	"github.com/bugVanisher/hwdec/common/errs"
)

// Slice types, spec table 7-6 (values 5..9 alias 0..4).
const (
	SliceTypeP = iota
	SliceTypeB
	SliceTypeI
	SliceTypeSP
	SliceTypeSI
)

const (
	// RefListSize bounds reference lists and marking arrays.
	RefListSize = 32
	// RefListModSize bounds the modification operation array.
	RefListModSize = RefListSize
)

// ModificationOfPicNum is one ref_pic_list_modification() operation.
type ModificationOfPicNum struct {
	ModificationOfPicNumsIdc int
	// For idc 0/1.
	AbsDiffPicNumMinus1 int32
	// For idc 2.
	LongTermPicNum int32
}

// DecRefPicMarking is one dec_ref_pic_marking() operation (MMCO).
type DecRefPicMarking struct {
	MemoryMgmntControlOperation int
	DifferenceOfPicNumsMinus1   int32
	LongTermPicNum              int32
	LongTermFrameIdx            int32
	MaxLongTermFrameIdxPlus1    int32
}

// PredWeightTable carries explicit prediction weights for one list.
type PredWeightTable struct {
	LumaLog2WeightDenom   int
	ChromaLog2WeightDenom int
	LumaWeightFlag        bool
	ChromaWeightFlag      bool
	LumaWeight            [RefListSize]int32
	LumaOffset            [RefListSize]int32
	ChromaWeight          [RefListSize][2]int32
	ChromaOffset          [RefListSize][2]int32
}

// SliceHeader is a parsed slice_header() (spec 7.3.3) restricted to the
// fields the decode core and the HW submission consume.
type SliceHeader struct {
	IdrPicFlag bool
	NalRefIdc  int
	// Raw NAL unit bytes (still escaped) handed to the codec as slice
	// data, and the bit offset where slice_data() starts.
	NaluData      []byte
	HeaderBitSize int

	FirstMbInSlice    int
	SliceType         int
	PicParameterSetID int

	FrameNum        int32
	FieldPicFlag    bool
	BottomFieldFlag bool
	IdrPicID        int

	PicOrderCntLsb          int32
	DeltaPicOrderCntBottom  int32
	DeltaPicOrderCnt        [2]int32
	RedundantPicCnt         int
	DirectSpatialMvPredFlag bool

	NumRefIdxActiveOverrideFlag bool
	NumRefIdxL0ActiveMinus1     int
	NumRefIdxL1ActiveMinus1     int

	RefPicListModificationFlagL0 bool
	RefPicListModificationFlagL1 bool
	RefListL0Modifications       [RefListModSize]ModificationOfPicNum
	RefListL1Modifications       [RefListModSize]ModificationOfPicNum

	PredWeightTableL0 PredWeightTable
	PredWeightTableL1 PredWeightTable

	NoOutputOfPriorPicsFlag       bool
	LongTermReferenceFlag         bool
	AdaptiveRefPicMarkingModeFlag bool
	RefPicMarking                 [RefListSize]DecRefPicMarking

	CabacInitIdc               int
	SliceQpDelta               int32
	DisableDeblockingFilterIdc int
	SliceAlphaC0OffsetDiv2     int32
	SliceBetaOffsetDiv2        int32
}

func (s *SliceHeader) IsPSlice() bool  { return s.SliceType%5 == SliceTypeP }
func (s *SliceHeader) IsBSlice() bool  { return s.SliceType%5 == SliceTypeB }
func (s *SliceHeader) IsISlice() bool  { return s.SliceType%5 == SliceTypeI }
func (s *SliceHeader) IsSPSlice() bool { return s.SliceType%5 == SliceTypeSP }
func (s *SliceHeader) IsSISlice() bool { return s.SliceType%5 == SliceTypeSI }

func parseRefPicListModification(br *bitReader, mods *[RefListModSize]ModificationOfPicNum) error {
	for i := 0; i < RefListModSize; i++ {
		idc, err := br.ue()
		if err != nil {
			return err
		}
		mods[i].ModificationOfPicNumsIdc = int(idc)
		switch idc {
		case 0, 1:
			v, err := br.ue()
			if err != nil {
				return err
			}
			mods[i].AbsDiffPicNumMinus1 = int32(v)
		case 2:
			v, err := br.ue()
			if err != nil {
				return err
			}
			mods[i].LongTermPicNum = int32(v)
		case 3:
			return nil
		default:
			return errs.New(errs.CodeInvalidStream, "invalid modification_of_pic_nums_idc")
		}
	}
	return errs.New(errs.CodeInvalidStream, "unterminated ref_pic_list_modification")
}

func parsePredWeightTable(br *bitReader, sps *SPS, hdr *SliceHeader) error {
	lumaDenom, err := br.ue()
	if err != nil {
		return err
	}
	chromaDenom := uint32(0)
	if sps.ChromaFormatIdc != 0 {
		if chromaDenom, err = br.ue(); err != nil {
			return err
		}
	}

	parseList := func(t *PredWeightTable, count int) error {
		t.LumaLog2WeightDenom = int(lumaDenom)
		t.ChromaLog2WeightDenom = int(chromaDenom)
		for i := 0; i <= count; i++ {
			lf, err := br.flag()
			if err != nil {
				return err
			}
			if lf {
				t.LumaWeightFlag = true
				if t.LumaWeight[i], err = br.se(); err != nil {
					return err
				}
				if t.LumaOffset[i], err = br.se(); err != nil {
					return err
				}
			} else {
				t.LumaWeight[i] = int32(1 << lumaDenom)
				t.LumaOffset[i] = 0
			}
			if sps.ChromaFormatIdc == 0 {
				continue
			}
			cf, err := br.flag()
			if err != nil {
				return err
			}
			if cf {
				t.ChromaWeightFlag = true
				for j := 0; j < 2; j++ {
					if t.ChromaWeight[i][j], err = br.se(); err != nil {
						return err
					}
					if t.ChromaOffset[i][j], err = br.se(); err != nil {
						return err
					}
				}
			} else {
				for j := 0; j < 2; j++ {
					t.ChromaWeight[i][j] = int32(1 << chromaDenom)
					t.ChromaOffset[i][j] = 0
				}
			}
		}
		return nil
	}

	if err := parseList(&hdr.PredWeightTableL0, hdr.NumRefIdxL0ActiveMinus1); err != nil {
		return err
	}
	if hdr.IsBSlice() {
		if err := parseList(&hdr.PredWeightTableL1, hdr.NumRefIdxL1ActiveMinus1); err != nil {
			return err
		}
	}
	return nil
}

func parseDecRefPicMarking(br *bitReader, hdr *SliceHeader) error {
	if hdr.IdrPicFlag {
		var err error
		if hdr.NoOutputOfPriorPicsFlag, err = br.flag(); err != nil {
			return err
		}
		if hdr.LongTermReferenceFlag, err = br.flag(); err != nil {
			return err
		}
		return nil
	}

	adaptive, err := br.flag()
	if err != nil {
		return err
	}
	hdr.AdaptiveRefPicMarkingModeFlag = adaptive
	if !adaptive {
		return nil
	}

	for i := 0; i < RefListSize; i++ {
		op, err := br.ue()
		if err != nil {
			return err
		}
		m := &hdr.RefPicMarking[i]
		m.MemoryMgmntControlOperation = int(op)
		switch op {
		case 0:
			return nil
		case 1:
			v, err := br.ue()
			if err != nil {
				return err
			}
			m.DifferenceOfPicNumsMinus1 = int32(v)
		case 2:
			v, err := br.ue()
			if err != nil {
				return err
			}
			m.LongTermPicNum = int32(v)
		case 3:
			v, err := br.ue()
			if err != nil {
				return err
			}
			m.DifferenceOfPicNumsMinus1 = int32(v)
			v, err = br.ue()
			if err != nil {
				return err
			}
			m.LongTermFrameIdx = int32(v)
		case 4:
			v, err := br.ue()
			if err != nil {
				return err
			}
			m.MaxLongTermFrameIdxPlus1 = int32(v)
		case 5:
			// No operands.
		case 6:
			v, err := br.ue()
			if err != nil {
				return err
			}
			m.LongTermFrameIdx = int32(v)
		default:
			return errs.New(errs.CodeInvalidStream, "invalid memory_management_control_operation")
		}
	}
	return errs.New(errs.CodeInvalidStream, "unterminated dec_ref_pic_marking")
}

// parseSliceHeaderData parses the slice header from nalu against the
// registered parameter sets.
func parseSliceHeaderData(nalu *Nalu, getSPS func(int) *SPS, getPPS func(int) *PPS) (*SliceHeader, error) {
	rbsp := unescapeRBSP(nalu.Raw[1:])
	br := newBitReader(rbsp)

	hdr := &SliceHeader{
		IdrPicFlag: nalu.Type == NaluIDRSlice,
		NalRefIdc:  nalu.RefIdc,
		NaluData:   nalu.Raw,
	}

	fmis, err := br.ue()
	if err != nil {
		return nil, err
	}
	hdr.FirstMbInSlice = int(fmis)

	st, err := br.ue()
	if err != nil {
		return nil, err
	}
	if st > 9 {
		return nil, errs.New(errs.CodeInvalidStream, "invalid slice_type")
	}
	hdr.SliceType = int(st)

	ppsID, err := br.ue()
	if err != nil {
		return nil, err
	}
	hdr.PicParameterSetID = int(ppsID)

	pps := getPPS(hdr.PicParameterSetID)
	if pps == nil {
		return nil, errs.New(errs.CodeInvalidStream, "slice references unknown PPS")
	}
	sps := getSPS(pps.SeqParameterSetID)
	if sps == nil {
		return nil, errs.New(errs.CodeInvalidStream, "slice references unknown SPS")
	}

	fn, err := br.u(sps.Log2MaxFrameNumMinus4 + 4)
	if err != nil {
		return nil, err
	}
	hdr.FrameNum = int32(fn)

	if !sps.FrameMbsOnlyFlag {
		if hdr.FieldPicFlag, err = br.flag(); err != nil {
			return nil, err
		}
		if hdr.FieldPicFlag {
			if hdr.BottomFieldFlag, err = br.flag(); err != nil {
				return nil, err
			}
		}
	}

	if hdr.IdrPicFlag {
		id, err := br.ue()
		if err != nil {
			return nil, err
		}
		hdr.IdrPicID = int(id)
	}

	switch sps.PicOrderCntType {
	case 0:
		lsb, err := br.u(sps.Log2MaxPicOrderCntLsbMinus4 + 4)
		if err != nil {
			return nil, err
		}
		hdr.PicOrderCntLsb = int32(lsb)
		if pps.PicOrderPresentFlag && !hdr.FieldPicFlag {
			if hdr.DeltaPicOrderCntBottom, err = br.se(); err != nil {
				return nil, err
			}
		}
	case 1:
		if !sps.DeltaPicOrderAlwaysZeroFlag {
			if hdr.DeltaPicOrderCnt[0], err = br.se(); err != nil {
				return nil, err
			}
			if pps.PicOrderPresentFlag && !hdr.FieldPicFlag {
				if hdr.DeltaPicOrderCnt[1], err = br.se(); err != nil {
					return nil, err
				}
			}
		}
	}

	if pps.RedundantPicCntPresentFlag {
		rpc, err := br.ue()
		if err != nil {
			return nil, err
		}
		hdr.RedundantPicCnt = int(rpc)
	}

	if hdr.IsBSlice() {
		if hdr.DirectSpatialMvPredFlag, err = br.flag(); err != nil {
			return nil, err
		}
	}

	hdr.NumRefIdxL0ActiveMinus1 = pps.NumRefIdxL0DefaultMinus1
	hdr.NumRefIdxL1ActiveMinus1 = pps.NumRefIdxL1DefaultMinus1
	if hdr.IsPSlice() || hdr.IsSPSlice() || hdr.IsBSlice() {
		if hdr.NumRefIdxActiveOverrideFlag, err = br.flag(); err != nil {
			return nil, err
		}
		if hdr.NumRefIdxActiveOverrideFlag {
			l0, err := br.ue()
			if err != nil {
				return nil, err
			}
			hdr.NumRefIdxL0ActiveMinus1 = int(l0)
			if hdr.IsBSlice() {
				l1, err := br.ue()
				if err != nil {
					return nil, err
				}
				hdr.NumRefIdxL1ActiveMinus1 = int(l1)
			}
		}
	}
	if hdr.NumRefIdxL0ActiveMinus1 >= RefListSize || hdr.NumRefIdxL1ActiveMinus1 >= RefListSize {
		return nil, errs.New(errs.CodeInvalidStream, "num_ref_idx_lX_active_minus1 out of range")
	}

	if !hdr.IsISlice() && !hdr.IsSISlice() {
		if hdr.RefPicListModificationFlagL0, err = br.flag(); err != nil {
			return nil, err
		}
		if hdr.RefPicListModificationFlagL0 {
			if err := parseRefPicListModification(br, &hdr.RefListL0Modifications); err != nil {
				return nil, err
			}
		}
	}
	if hdr.IsBSlice() {
		if hdr.RefPicListModificationFlagL1, err = br.flag(); err != nil {
			return nil, err
		}
		if hdr.RefPicListModificationFlagL1 {
			if err := parseRefPicListModification(br, &hdr.RefListL1Modifications); err != nil {
				return nil, err
			}
		}
	}

	if (pps.WeightedPredFlag && (hdr.IsPSlice() || hdr.IsSPSlice())) ||
		(pps.WeightedBipredIdc == 1 && hdr.IsBSlice()) {
		if err := parsePredWeightTable(br, sps, hdr); err != nil {
			return nil, err
		}
	}

	if hdr.NalRefIdc != 0 {
		if err := parseDecRefPicMarking(br, hdr); err != nil {
			return nil, err
		}
	}

	if pps.EntropyCodingModeFlag && !hdr.IsISlice() && !hdr.IsSISlice() {
		cii, err := br.ue()
		if err != nil {
			return nil, err
		}
		hdr.CabacInitIdc = int(cii)
	}

	if hdr.SliceQpDelta, err = br.se(); err != nil {
		return nil, err
	}

	if hdr.IsSPSlice() || hdr.IsSISlice() {
		if hdr.IsSPSlice() {
			if _, err := br.flag(); err != nil { // sp_for_switch_flag
				return nil, err
			}
		}
		if _, err := br.se(); err != nil { // slice_qs_delta
			return nil, err
		}
	}

	if pps.DeblockingFilterControl {
		idc, err := br.ue()
		if err != nil {
			return nil, err
		}
		hdr.DisableDeblockingFilterIdc = int(idc)
		if hdr.DisableDeblockingFilterIdc != 1 {
			if hdr.SliceAlphaC0OffsetDiv2, err = br.se(); err != nil {
				return nil, err
			}
			if hdr.SliceBetaOffsetDiv2, err = br.se(); err != nil {
				return nil, err
			}
		}
	}

	// The NAL header byte counts towards the data bit offset the codec
	// receives.
	hdr.HeaderBitSize = br.bitsRead() + 8
	return hdr, nil
}
