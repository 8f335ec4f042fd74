package h264

import (
	"github.com/bugVanisher/hwdec/common/errs"
)

// PPS is a parsed picture parameter set (spec 7.3.2.2).
type PPS struct {
	PicParameterSetID int
	SeqParameterSetID int

	EntropyCodingModeFlag      bool
	PicOrderPresentFlag        bool
	NumSliceGroupsMinus1       int
	NumRefIdxL0DefaultMinus1   int
	NumRefIdxL1DefaultMinus1   int
	WeightedPredFlag           bool
	WeightedBipredIdc          int
	PicInitQpMinus26           int32
	PicInitQsMinus26           int32
	ChromaQpIndexOffset        int32
	DeblockingFilterControl    bool
	ConstrainedIntraPredFlag   bool
	RedundantPicCntPresentFlag bool

	Transform8x8ModeFlag        bool
	PicScalingMatrixPresentFlag bool
	ScalingList4x4              [6][16]byte
	ScalingList8x8              [6][64]byte
	SecondChromaQpIndexOffset   int32
}

// parsePPSScalingLists applies fall-back rule B (spec table 7-2): absent
// lists 0 and 3 (and 8x8 list 0/1) inherit from the active SPS, the rest
// from the previous PPS list.
func parsePPSScalingLists(br *bitReader, pps *PPS, sps *SPS, count int) error {
	for i := 0; i < count; i++ {
		present, err := br.flag()
		if err != nil {
			return err
		}

		if i < 6 {
			list := pps.ScalingList4x4[i][:]
			if !present {
				switch i {
				case 0, 3:
					copy(list, sps.ScalingList4x4[i][:])
				default:
					copy(list, pps.ScalingList4x4[i-1][:])
				}
				continue
			}
			useDefault, err := parseScalingList(br, list)
			if err != nil {
				return err
			}
			if useDefault {
				if i < 3 {
					copy(list, default4x4Intra[:])
				} else {
					copy(list, default4x4Inter[:])
				}
			}
			continue
		}

		j := i - 6
		list := pps.ScalingList8x8[j][:]
		if !present {
			switch j {
			case 0, 1:
				copy(list, sps.ScalingList8x8[j][:])
			default:
				copy(list, pps.ScalingList8x8[j-2][:])
			}
			continue
		}
		useDefault, err := parseScalingList(br, list)
		if err != nil {
			return err
		}
		if useDefault {
			if j%2 == 0 {
				copy(list, default8x8Intra[:])
			} else {
				copy(list, default8x8Inter[:])
			}
		}
	}
	return nil
}

func parsePPSData(rbsp []byte, getSPS func(id int) *SPS) (*PPS, error) {
	br := newBitReader(rbsp)
	pps := &PPS{}

	id, err := br.ue()
	if err != nil {
		return nil, err
	}
	if id > 255 {
		return nil, errs.New(errs.CodeInvalidStream, "pic_parameter_set_id out of range")
	}
	pps.PicParameterSetID = int(id)

	spsID, err := br.ue()
	if err != nil {
		return nil, err
	}
	if spsID > 31 {
		return nil, errs.New(errs.CodeInvalidStream, "seq_parameter_set_id out of range")
	}
	pps.SeqParameterSetID = int(spsID)

	sps := getSPS(pps.SeqParameterSetID)
	if sps == nil {
		return nil, errs.New(errs.CodeInvalidStream, "PPS references unknown SPS")
	}

	if pps.EntropyCodingModeFlag, err = br.flag(); err != nil {
		return nil, err
	}
	if pps.PicOrderPresentFlag, err = br.flag(); err != nil {
		return nil, err
	}

	nsg, err := br.ue()
	if err != nil {
		return nil, err
	}
	pps.NumSliceGroupsMinus1 = int(nsg)
	if pps.NumSliceGroupsMinus1 > 0 {
		return nil, errs.New(errs.CodeUnsupportedStream, "slice groups not supported")
	}

	l0, err := br.ue()
	if err != nil {
		return nil, err
	}
	pps.NumRefIdxL0DefaultMinus1 = int(l0)
	l1, err := br.ue()
	if err != nil {
		return nil, err
	}
	pps.NumRefIdxL1DefaultMinus1 = int(l1)

	if pps.WeightedPredFlag, err = br.flag(); err != nil {
		return nil, err
	}
	wbi, err := br.u(2)
	if err != nil {
		return nil, err
	}
	pps.WeightedBipredIdc = int(wbi)

	if pps.PicInitQpMinus26, err = br.se(); err != nil {
		return nil, err
	}
	if pps.PicInitQsMinus26, err = br.se(); err != nil {
		return nil, err
	}
	if pps.ChromaQpIndexOffset, err = br.se(); err != nil {
		return nil, err
	}

	if pps.DeblockingFilterControl, err = br.flag(); err != nil {
		return nil, err
	}
	if pps.ConstrainedIntraPredFlag, err = br.flag(); err != nil {
		return nil, err
	}
	if pps.RedundantPicCntPresentFlag, err = br.flag(); err != nil {
		return nil, err
	}

	// Defaults when the rbsp ends here (no extension data).
	pps.ScalingList4x4 = sps.ScalingList4x4
	pps.ScalingList8x8 = sps.ScalingList8x8
	pps.SecondChromaQpIndexOffset = pps.ChromaQpIndexOffset

	if !br.hasMoreRBSPData() {
		return pps, nil
	}

	if pps.Transform8x8ModeFlag, err = br.flag(); err != nil {
		return nil, err
	}
	if pps.PicScalingMatrixPresentFlag, err = br.flag(); err != nil {
		return nil, err
	}
	if pps.PicScalingMatrixPresentFlag {
		count := 6
		if pps.Transform8x8ModeFlag {
			count += 2
		}
		if err := parsePPSScalingLists(br, pps, sps, count); err != nil {
			return nil, err
		}
	}
	if pps.SecondChromaQpIndexOffset, err = br.se(); err != nil {
		return nil, err
	}

	return pps, nil
}
