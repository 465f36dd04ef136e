package rtpaudio

import (
	"github.com/pion/interceptor"
	"github.com/pion/rtp"
)

// InterceptorWriter returns an interceptor.RTPWriter that feeds every
// packet it receives into q.AddPacket. This lets a Queue sit at the end
// of a real pion/interceptor chain (NACK generators, RTCP reports, jitter
// estimation) the same way any other RTP sink in that chain would,
// without those interceptors needing to know about the reassembly
// protocol underneath.
//
// The returned writer never reports an error back up the chain: fault
// classification for malformed or incompatible input happens inside
// AddPacket per the queue's own status contract, not via the interceptor
// error path.
func (q *Queue) InterceptorWriter() interceptor.RTPWriter {
	return interceptor.RTPWriterFunc(func(header *rtp.Header, payload []byte, _ interceptor.Attributes) (int, error) {
		buf := make([]byte, header.MarshalSize()+len(payload))
		n, err := header.MarshalTo(buf)
		if err != nil {
			return 0, nil
		}
		n += copy(buf[n:], payload)

		q.AddPacket(buf[:n])
		return n, nil
	})
}
