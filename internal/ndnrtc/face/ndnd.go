package face

import (
	"fmt"
	"time"

	enc "github.com/named-data/ndnd/std/encoding"
	"github.com/named-data/ndnd/std/ndn"
	spec "github.com/named-data/ndnd/std/ndn/spec_2022"
	"github.com/named-data/ndnd/std/types/optional"

	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/name"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/packet"
	"github.com/ndnrtc/fetch-engine/internal/ndnrtc/reqqueue"
)

// NdndTransport implements Transport over a real named-data/ndnd engine,
// converting between this module's name.Name and ndnd's encoding.Name and
// unwrapping the wire-level segment header from each Data reply's content.
type NdndTransport struct {
	engine ndn.Engine
	spec   spec.Spec
}

func NewNdndTransport(engine ndn.Engine) *NdndTransport {
	return &NdndTransport{engine: engine}
}

// fromEncName recovers a name.Name from an ndnd-resolved Data name by
// round-tripping through its standard NDN text representation (marker-byte
// convention, rev2), rather than ndnd's component accessors directly —
// ndnd's exact component-introspection API wasn't available to ground
// against (see DESIGN.md).
func fromEncName(n enc.Name) (name.Name, error) {
	return name.Parse(n.String())
}

func toEncName(n name.Name) (enc.Name, error) {
	out := make(enc.Name, 0, len(n))
	for _, c := range n {
		switch c.Kind {
		case name.KindGeneric:
			out = append(out, enc.NewGenericComponent(c.Text))
		case name.KindVersion:
			out = append(out, enc.NewVersionComponent(c.Value))
		case name.KindSegment:
			out = append(out, enc.NewSegmentComponent(c.Value))
		case name.KindSequenceNumber:
			out = append(out, enc.NewSequenceNumComponent(c.Value))
		case name.KindTimestamp:
			out = append(out, enc.NewTimestampComponent(c.Value))
		default:
			return nil, fmt.Errorf("face: unknown component kind %v", c.Kind)
		}
	}
	return out, nil
}

// ExpressInterest builds a MustBeFresh Interest for req.Name with req.Nonce
// and dispatches it on the underlying engine.
func (t *NdndTransport) ExpressInterest(req *reqqueue.DataRequest, lifetimeMs int64, onResult func(Outcome)) error {
	encName, err := toEncName(req.Name)
	if err != nil {
		return err
	}
	cfg := &ndn.InterestConfig{
		Lifetime:    optional.Some(time.Duration(lifetimeMs) * time.Millisecond),
		Nonce:       optional.Some(uint64(req.Nonce)),
		MustBeFresh: true,
		// A rightmost-discovery request (ExpressRightmost) carries no
		// segment component and relies on CanBePrefix to match whatever
		// the producer actually published under the prefix.
		CanBePrefix: !req.Info.HasSegNo,
	}
	interest, err := t.spec.MakeInterest(encName, cfg, nil, nil)
	if err != nil {
		return fmt.Errorf("face: MakeInterest: %w", err)
	}

	return t.engine.Express(interest, func(args ndn.ExpressCallbackArgs) {
		switch args.Result {
		case ndn.InterestResultData:
			content := args.Data.Content().Join()
			resolved, rerr := fromEncName(args.Data.Name())
			if rerr != nil {
				resolved = nil
			}

			// Only data/parity segments carry a DataSegmentHeader prefix
			// (publisher.go's PublishFrame); manifest/meta/pointer replies
			// are header-less (PublishStreamMeta/PublishLiveMeta, and the
			// manifest wire built directly from manifest.Marshal()).
			class := req.Info.SegmentClassVal
			if !req.Info.HasSegNo || class == name.SegmentManifest || class == name.SegmentMeta || class == name.SegmentPointer {
				onResult(Outcome{Kind: OutcomeData, Data: content, Name: resolved})
				return
			}

			header, herr := packet.UnmarshalDataSegmentHeader(content)
			if herr != nil {
				onResult(Outcome{Kind: OutcomeNack})
				return
			}
			onResult(Outcome{Kind: OutcomeData, Data: content[header.Len():], Header: header, Name: resolved})
		case ndn.InterestResultTimeout:
			onResult(Outcome{Kind: OutcomeTimeout})
		case ndn.InterestResultNack:
			onResult(Outcome{Kind: OutcomeNack, IsAppNack: false})
		}
	})
}
