package engine

import "fmt"

// AllItems passed as the item count to InArchive.Extract means every item in the archive.
const AllItems uint32 = 0xFFFFFFFF

// PropID identifies an item or archive property.
type PropID uint32

const (
	KpidNoProperty PropID = iota
	KpidMainSubfile
	KpidHandlerItemIndex
	KpidPath
	KpidName
	KpidExtension
	KpidIsDir
	KpidSize
	KpidPackSize
	KpidAttrib
	KpidCTime
	KpidATime
	KpidMTime
	KpidSolid
	KpidCommented
	KpidEncrypted
	KpidSplitBefore
	KpidSplitAfter
	KpidDictionarySize
	KpidCRC
	KpidType
	KpidIsAnti
	KpidMethod
	KpidHostOS
	KpidFileSystem
	KpidUser
	KpidGroup
	KpidBlock
	KpidComment
	KpidPosition
	KpidPrefix
	KpidNumSubDirs
	KpidNumSubFiles
	KpidUnpackVer
	KpidVolume
	KpidIsVolume
	KpidOffset
	KpidLinks
	KpidNumBlocks
	KpidNumVolumes
)

var propNames = map[PropID]string{
	KpidNoProperty:       "NoProperty",
	KpidMainSubfile:      "MainSubfile",
	KpidHandlerItemIndex: "HandlerItemIndex",
	KpidPath:             "Path",
	KpidName:             "Name",
	KpidExtension:        "Extension",
	KpidIsDir:            "IsDir",
	KpidSize:             "Size",
	KpidPackSize:         "PackSize",
	KpidAttrib:           "Attrib",
	KpidCTime:            "CTime",
	KpidATime:            "ATime",
	KpidMTime:            "MTime",
	KpidSolid:            "Solid",
	KpidCommented:        "Commented",
	KpidEncrypted:        "Encrypted",
	KpidSplitBefore:      "SplitBefore",
	KpidSplitAfter:       "SplitAfter",
	KpidDictionarySize:   "DictionarySize",
	KpidCRC:              "CRC",
	KpidType:             "Type",
	KpidIsAnti:           "IsAnti",
	KpidMethod:           "Method",
	KpidHostOS:           "HostOS",
	KpidFileSystem:       "FileSystem",
	KpidUser:             "User",
	KpidGroup:            "Group",
	KpidBlock:            "Block",
	KpidComment:          "Comment",
	KpidPosition:         "Position",
	KpidPrefix:           "Prefix",
	KpidNumSubDirs:       "NumSubDirs",
	KpidNumSubFiles:      "NumSubFiles",
	KpidUnpackVer:        "UnpackVer",
	KpidVolume:           "Volume",
	KpidIsVolume:         "IsVolume",
	KpidOffset:           "Offset",
	KpidLinks:            "Links",
	KpidNumBlocks:        "NumBlocks",
	KpidNumVolumes:       "NumVolumes",
}

func (p PropID) String() string {
	if name, ok := propNames[p]; ok {
		return name
	}

	return fmt.Sprintf("PropID(%d)", uint32(p))
}

// AskMode tells ExtractCallback what the engine is about to do with an item.
type AskMode int32

const (
	AskExtract AskMode = iota
	AskTest
	AskSkip
)

func (m AskMode) String() string {
	switch m {
	case AskExtract:
		return "extract"
	case AskTest:
		return "test"
	case AskSkip:
		return "skip"
	default:
		return fmt.Sprintf("AskMode(%d)", int32(m))
	}
}

// OperationResult is the per-item outcome passed to SetOperationResult.
type OperationResult int32

const (
	OpOK OperationResult = iota
	OpUnsupportedMethod
	OpDataError
	OpCRCError
	OpUnavailable
	OpUnexpectedEnd
	OpDataAfterEnd
	OpIsNotArc
	OpHeadersError
	OpWrongPassword
)

var opNames = map[OperationResult]string{
	OpOK:                "ok",
	OpUnsupportedMethod: "unsupported compression method",
	OpDataError:         "data error",
	OpCRCError:          "CRC error",
	OpUnavailable:       "data unavailable",
	OpUnexpectedEnd:     "unexpected end of data",
	OpDataAfterEnd:      "data after end of archive",
	OpIsNotArc:          "not an archive",
	OpHeadersError:      "headers error",
	OpWrongPassword:     "wrong password",
}

func (r OperationResult) String() string {
	if name, ok := opNames[r]; ok {
		return name
	}

	return fmt.Sprintf("OperationResult(%d)", int32(r))
}
