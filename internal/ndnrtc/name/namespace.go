package name

import "fmt"

// fixed literal tokens, spec.md §3.
const (
	tokenApp        = "ndnrtc"
	tokenAudio      = "audio"
	tokenVideo      = "video"
	tokenMeta       = "_meta"
	tokenLive       = "_live"
	tokenLatest     = "_latest"
	tokenGop        = "_gop"
	tokenGopStart   = "_gop_start"
	tokenGopEnd     = "_gop_end"
	tokenDelta      = "d"
	tokenKey        = "k"
	tokenParity     = "_parity"
	tokenManifest   = "_manifest"
)

type StreamType int

const (
	StreamAudio StreamType = iota
	StreamVideo
)

type SampleClass int

const (
	SampleUnknown SampleClass = iota
	SampleDelta
	SampleKey
)

type SegmentClass int

const (
	SegmentUnknown SegmentClass = iota
	SegmentData
	SegmentParity
	SegmentManifest
	SegmentMeta
	SegmentPointer
)

// Level enumerates the cumulative points at which a Name can be truncated,
// mirroring the C++ prefix_filter stages (base < library < stream < streamTS
// < thread < sample < segment).
type Level int

const (
	LevelBase Level = iota
	LevelLibrary
	LevelStream
	LevelStreamTS
	LevelThread
	LevelSample
	LevelSegment
)

// Info is the parsed identity of a name (spec.md §3's NamespaceInfo).
type Info struct {
	BasePrefix     Name
	APIVersion     uint64
	StreamType     StreamType
	StreamName     string
	ThreadName     string
	StreamTS       uint64
	HasStreamTS    bool
	SampleClassVal SampleClass
	SegmentClassVal SegmentClass
	SampleNo       uint64
	HasSeqNo       bool
	SegNo          uint64
	HasSegNo       bool
	MetaVersion    uint64

	IsMeta     bool
	IsLiveMeta bool
	IsParity   bool
	IsDelta    bool
}

func streamToken(t StreamType) string {
	if t == StreamAudio {
		return tokenAudio
	}
	return tokenVideo
}

func classToken(c SampleClass) string {
	if c == SampleDelta {
		return tokenDelta
	}
	return tokenKey
}

// Prefix builds the Name truncated at the given cumulative level.
func (info Info) Prefix(level Level) Name {
	n := append(Name{}, info.BasePrefix...)
	if level < LevelLibrary {
		return n
	}
	n = n.Append(Generic(tokenApp), Version(info.APIVersion))
	if level < LevelStream {
		return n
	}
	n = n.Append(Generic(streamToken(info.StreamType)), Generic(info.StreamName))
	if level < LevelStreamTS {
		return n
	}
	if info.ThreadName == "" {
		return n
	}
	n = n.Append(Timestamp(info.StreamTS))
	if level < LevelThread {
		return n
	}
	n = n.Append(Generic(info.ThreadName))
	if level < LevelSample {
		return n
	}

	if info.IsMeta {
		if info.IsLiveMeta {
			n = n.Append(Generic(tokenLive))
		} else {
			n = n.Append(Generic(tokenMeta))
		}
		if level >= LevelSegment {
			n = n.Append(Version(info.MetaVersion), Segment(info.SegNo))
		}
		return n
	}

	if info.StreamType == StreamVideo {
		n = n.Append(Generic(classToken(info.SampleClassVal)))
	}
	n = n.Append(SequenceNumber(info.SampleNo))
	if level < LevelSegment {
		return n
	}
	if info.SegmentClassVal == SegmentManifest {
		return n.Append(Generic(tokenManifest))
	}
	if info.IsParity {
		n = n.Append(Generic(tokenParity))
	}
	return n.Append(Segment(info.SegNo))
}

// Extract parses a Name back into an Info. It walks backward from the end
// looking for the rightmost "ndnrtc/<version>" anchor, matching the C++
// extractInfo scan (names may carry an arbitrary-length routable prefix
// before the ndnrtc suffix).
func Extract(n Name) (Info, error) {
	anchor := -1
	for i := len(n) - 2; i >= 0; i-- {
		if n[i].Kind == KindGeneric && n[i].Text == tokenApp && n[i+1].Kind == KindVersion {
			anchor = i
			break
		}
	}
	if anchor < 0 {
		return Info{}, fmt.Errorf("name: no ndnrtc/<version> anchor in %s", n)
	}

	info := Info{BasePrefix: append(Name{}, n[:anchor]...), APIVersion: n[anchor+1].Value}
	rest := n[anchor+2:]
	if len(rest) == 0 {
		return Info{}, fmt.Errorf("name: missing stream-type component")
	}
	switch rest[0].Text {
	case tokenAudio:
		info.StreamType = StreamAudio
	case tokenVideo:
		info.StreamType = StreamVideo
	default:
		return Info{}, fmt.Errorf("name: unknown stream type %q", rest[0].Text)
	}
	rest = rest[1:]
	if len(rest) == 0 {
		return Info{}, fmt.Errorf("name: missing stream name")
	}
	info.StreamName = rest[0].Text
	rest = rest[1:]

	if len(rest) == 0 {
		return info, nil
	}
	if len(rest) == 1 && rest[0].Kind == KindTimestamp {
		info.StreamTS = rest[0].Value
		info.HasStreamTS = true
		return info, nil
	}

	if rest[0].Kind != KindTimestamp {
		return Info{}, fmt.Errorf("name: expected timestamp component, got %s", rest[0])
	}
	info.StreamTS = rest[0].Value
	info.HasStreamTS = true
	rest = rest[1:]
	if len(rest) == 0 {
		return Info{}, fmt.Errorf("name: missing thread name")
	}
	info.ThreadName = rest[0].Text
	rest = rest[1:]

	if info.StreamType == StreamVideo {
		return extractVideoTail(rest, info)
	}
	return extractAudioTail(rest, info)
}

func extractMetaTail(rest Name, info Info, isLive bool) (Info, error) {
	info.IsMeta = true
	info.IsLiveMeta = isLive
	info.SegmentClassVal = SegmentMeta
	if len(rest) == 0 {
		return info, nil
	}
	if rest[0].Kind != KindVersion {
		return Info{}, fmt.Errorf("name: expected meta version, got %s", rest[0])
	}
	info.MetaVersion = rest[0].Value
	if len(rest) >= 2 {
		if rest[1].Kind != KindSegment {
			return Info{}, fmt.Errorf("name: expected meta segment, got %s", rest[1])
		}
		info.SegNo = rest[1].Value
		info.HasSegNo = true
	}
	return info, nil
}

func extractVideoTail(rest Name, info Info) (Info, error) {
	if len(rest) == 0 {
		info.HasSeqNo = false
		return info, nil
	}
	if rest[0].Kind == KindGeneric && rest[0].Text == tokenMeta {
		return extractMetaTail(rest[1:], info, false)
	}
	if rest[0].Kind == KindGeneric && rest[0].Text == tokenLive {
		return extractMetaTail(rest[1:], info, true)
	}
	if rest[0].Kind != KindGeneric || (rest[0].Text != tokenDelta && rest[0].Text != tokenKey) {
		return Info{}, fmt.Errorf("name: expected d|k, got %s", rest[0])
	}
	info.IsDelta = rest[0].Text == tokenDelta
	if info.IsDelta {
		info.SampleClassVal = SampleDelta
	} else {
		info.SampleClassVal = SampleKey
	}
	rest = rest[1:]
	if len(rest) == 0 {
		info.HasSeqNo = false
		return info, nil
	}
	if rest[0].Kind != KindSequenceNumber {
		return Info{}, fmt.Errorf("name: expected sequence number, got %s", rest[0])
	}
	info.SampleNo = rest[0].Value
	info.HasSeqNo = true
	rest = rest[1:]

	if len(rest) == 0 {
		info.SegmentClassVal = SegmentUnknown
		info.HasSegNo = false
		return info, nil
	}

	if rest[0].Kind == KindGeneric && rest[0].Text == tokenParity {
		if len(rest) < 2 || rest[1].Kind != KindSegment {
			return Info{}, fmt.Errorf("name: malformed parity segment")
		}
		info.IsParity = true
		info.SegmentClassVal = SegmentParity
		info.SegNo = rest[1].Value
		info.HasSegNo = true
		return info, nil
	}

	if rest[0].Kind == KindGeneric && rest[0].Text == tokenManifest {
		info.SegmentClassVal = SegmentManifest
		return info, nil
	}

	if rest[0].Kind != KindSegment {
		return Info{}, fmt.Errorf("name: expected data segment, got %s", rest[0])
	}
	info.SegmentClassVal = SegmentData
	info.SegNo = rest[0].Value
	info.HasSegNo = true
	return info, nil
}

func extractAudioTail(rest Name, info Info) (Info, error) {
	if len(rest) == 0 {
		info.HasSeqNo = false
		return info, nil
	}
	if rest[0].Kind == KindGeneric && rest[0].Text == tokenMeta {
		return extractMetaTail(rest[1:], info, false)
	}
	if rest[0].Kind == KindGeneric && rest[0].Text == tokenLive {
		return extractMetaTail(rest[1:], info, true)
	}
	info.IsDelta = true
	info.SampleClassVal = SampleDelta

	if rest[0].Kind != KindSequenceNumber {
		return Info{}, fmt.Errorf("name: expected sequence number, got %s", rest[0])
	}
	info.SampleNo = rest[0].Value
	info.HasSeqNo = true
	rest = rest[1:]

	if len(rest) == 0 {
		info.SegmentClassVal = SegmentUnknown
		info.HasSegNo = false
		return info, nil
	}
	if rest[0].Kind == KindGeneric && rest[0].Text == tokenManifest {
		info.SegmentClassVal = SegmentManifest
		return info, nil
	}
	if rest[0].Kind != KindSegment {
		return Info{}, fmt.Errorf("name: expected data segment, got %s", rest[0])
	}
	info.SegmentClassVal = SegmentData
	info.SegNo = rest[0].Value
	info.HasSegNo = true
	return info, nil
}
