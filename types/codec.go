package types

import "github.com/mutanet/mutacore/codec"

// EncodeFixed implements codec.FixedCodec for RawTransaction.
func (t RawTransaction) EncodeFixed() ([]byte, error) {
	w := codec.NewWriter()
	w.PutFixed(t.ChainID[:])
	w.PutFixed(t.Nonce[:])
	w.PutUint64(t.CyclesPrice)
	w.PutUint64(t.CyclesLimit)
	w.PutUint64(t.Timeout)
	w.PutFixed(t.Sender[:])
	w.PutBytes([]byte(t.Request.ServiceName))
	w.PutBytes([]byte(t.Request.Method))
	w.PutBytes([]byte(t.Request.Payload))
	return w.Bytes(), nil
}

// DecodeRawTransaction parses bytes produced by RawTransaction.EncodeFixed.
func DecodeRawTransaction(b []byte) (RawTransaction, error) {
	var t RawTransaction
	r := codec.NewReader(b)
	chainID, err := r.Fixed(HashLength)
	if err != nil {
		return t, err
	}
	nonce, err := r.Fixed(32)
	if err != nil {
		return t, err
	}
	price, err := r.Uint64()
	if err != nil {
		return t, err
	}
	limit, err := r.Uint64()
	if err != nil {
		return t, err
	}
	timeout, err := r.Uint64()
	if err != nil {
		return t, err
	}
	sender, err := r.Fixed(AddressLength)
	if err != nil {
		return t, err
	}
	svc, err := r.Bytes()
	if err != nil {
		return t, err
	}
	method, err := r.Bytes()
	if err != nil {
		return t, err
	}
	payload, err := r.Bytes()
	if err != nil {
		return t, err
	}
	if err := r.Done(); err != nil {
		return t, err
	}
	copy(t.ChainID[:], chainID)
	copy(t.Nonce[:], nonce)
	t.CyclesPrice = price
	t.CyclesLimit = limit
	t.Timeout = timeout
	copy(t.Sender[:], sender)
	t.Request = TransactionRequest{ServiceName: string(svc), Method: string(method), Payload: string(payload)}
	return t, nil
}

// EncodeFixed implements codec.FixedCodec for SignedTransaction.
func (s SignedTransaction) EncodeFixed() ([]byte, error) {
	rawBytes, err := s.Raw.EncodeFixed()
	if err != nil {
		return nil, err
	}
	w := codec.NewWriter()
	w.PutBytes(rawBytes)
	w.PutFixed(s.TxHash[:])
	w.PutBytes(s.PubKey)
	w.PutBytes(s.Signature)
	return w.Bytes(), nil
}

// DecodeSignedTransaction parses bytes produced by SignedTransaction.EncodeFixed.
func DecodeSignedTransaction(b []byte) (SignedTransaction, error) {
	var s SignedTransaction
	r := codec.NewReader(b)
	rawBytes, err := r.Bytes()
	if err != nil {
		return s, err
	}
	txHash, err := r.Fixed(HashLength)
	if err != nil {
		return s, err
	}
	pubkey, err := r.Bytes()
	if err != nil {
		return s, err
	}
	sig, err := r.Bytes()
	if err != nil {
		return s, err
	}
	if err := r.Done(); err != nil {
		return s, err
	}
	raw, err := DecodeRawTransaction(rawBytes)
	if err != nil {
		return s, err
	}
	s.Raw = raw
	copy(s.TxHash[:], txHash)
	s.PubKey = pubkey
	s.Signature = sig
	return s, nil
}

// EncodeFixed implements codec.FixedCodec for BlockHeader.
func (h BlockHeader) EncodeFixed() ([]byte, error) {
	w := codec.NewWriter()
	w.PutFixed(h.ChainID[:])
	w.PutUint64(h.Height)
	w.PutUint64(h.ExecHeight)
	w.PutFixed(h.PrevHash[:])
	w.PutUint64(h.Timestamp)
	w.PutFixed(h.OrderRoot[:])
	w.PutFixed(h.OrderSignedTxsHash[:])
	w.PutUint32(uint32(len(h.ConfirmRoot)))
	for _, r := range h.ConfirmRoot {
		w.PutFixed(r[:])
	}
	w.PutFixed(h.StateRoot[:])
	w.PutUint32(uint32(len(h.ReceiptRoot)))
	for _, r := range h.ReceiptRoot {
		w.PutFixed(r[:])
	}
	w.PutUint32(uint32(len(h.CyclesUsed)))
	for _, c := range h.CyclesUsed {
		w.PutUint64(c)
	}
	w.PutFixed(h.Proposer[:])
	proofBytes, err := h.Proof.EncodeFixed()
	if err != nil {
		return nil, err
	}
	w.PutBytes(proofBytes)
	w.PutUint64(h.ValidatorVersion)
	w.PutUint32(uint32(len(h.Validators)))
	for _, v := range h.Validators {
		vb, err := v.EncodeFixed()
		if err != nil {
			return nil, err
		}
		w.PutBytes(vb)
	}
	return w.Bytes(), nil
}

// EncodeFixed implements codec.FixedCodec for Proof.
func (p Proof) EncodeFixed() ([]byte, error) {
	w := codec.NewWriter()
	w.PutUint64(p.Height)
	w.PutUint64(p.Round)
	w.PutFixed(p.BlockHash[:])
	w.PutBytes(p.AggregatedSignature)
	w.PutBytes(p.ParticipantBitmap)
	return w.Bytes(), nil
}

// DecodeProof parses bytes produced by Proof.EncodeFixed.
func DecodeProof(b []byte) (Proof, error) {
	var p Proof
	r := codec.NewReader(b)
	height, err := r.Uint64()
	if err != nil {
		return p, err
	}
	round, err := r.Uint64()
	if err != nil {
		return p, err
	}
	blockHash, err := r.Fixed(HashLength)
	if err != nil {
		return p, err
	}
	aggSig, err := r.Bytes()
	if err != nil {
		return p, err
	}
	bitmap, err := r.Bytes()
	if err != nil {
		return p, err
	}
	if err := r.Done(); err != nil {
		return p, err
	}
	p.Height = height
	p.Round = round
	copy(p.BlockHash[:], blockHash)
	p.AggregatedSignature = aggSig
	p.ParticipantBitmap = bitmap
	return p, nil
}

// EncodeFixed implements codec.FixedCodec for Validator.
func (v Validator) EncodeFixed() ([]byte, error) {
	w := codec.NewWriter()
	w.PutBytes(v.PubKey)
	w.PutBytes(v.BLSPubKey)
	w.PutUint32(v.ProposeWeight)
	w.PutUint32(v.VoteWeight)
	return w.Bytes(), nil
}

// DecodeValidator parses bytes produced by Validator.EncodeFixed.
func DecodeValidator(b []byte) (Validator, error) {
	var v Validator
	r := codec.NewReader(b)
	pubkey, err := r.Bytes()
	if err != nil {
		return v, err
	}
	blsPubkey, err := r.Bytes()
	if err != nil {
		return v, err
	}
	proposeWeight, err := r.Uint32()
	if err != nil {
		return v, err
	}
	voteWeight, err := r.Uint32()
	if err != nil {
		return v, err
	}
	if err := r.Done(); err != nil {
		return v, err
	}
	v.PubKey = pubkey
	v.BLSPubKey = blsPubkey
	v.ProposeWeight = proposeWeight
	v.VoteWeight = voteWeight
	return v, nil
}

// DecodeBlockHeader parses bytes produced by BlockHeader.EncodeFixed.
func DecodeBlockHeader(b []byte) (BlockHeader, error) {
	var h BlockHeader
	r := codec.NewReader(b)
	chainID, err := r.Fixed(HashLength)
	if err != nil {
		return h, err
	}
	height, err := r.Uint64()
	if err != nil {
		return h, err
	}
	execHeight, err := r.Uint64()
	if err != nil {
		return h, err
	}
	prevHash, err := r.Fixed(HashLength)
	if err != nil {
		return h, err
	}
	timestamp, err := r.Uint64()
	if err != nil {
		return h, err
	}
	orderRoot, err := r.Fixed(HashLength)
	if err != nil {
		return h, err
	}
	orderSignedTxsHash, err := r.Fixed(HashLength)
	if err != nil {
		return h, err
	}
	confirmRootCount, err := r.Uint32()
	if err != nil {
		return h, err
	}
	var confirmRoot []Hash
	if confirmRootCount > 0 {
		confirmRoot = make([]Hash, confirmRootCount)
	}
	for i := range confirmRoot {
		hb, err := r.Fixed(HashLength)
		if err != nil {
			return h, err
		}
		copy(confirmRoot[i][:], hb)
	}
	stateRoot, err := r.Fixed(HashLength)
	if err != nil {
		return h, err
	}
	receiptRootCount, err := r.Uint32()
	if err != nil {
		return h, err
	}
	var receiptRoot []Hash
	if receiptRootCount > 0 {
		receiptRoot = make([]Hash, receiptRootCount)
	}
	for i := range receiptRoot {
		hb, err := r.Fixed(HashLength)
		if err != nil {
			return h, err
		}
		copy(receiptRoot[i][:], hb)
	}
	cyclesUsedCount, err := r.Uint32()
	if err != nil {
		return h, err
	}
	var cyclesUsed []uint64
	if cyclesUsedCount > 0 {
		cyclesUsed = make([]uint64, cyclesUsedCount)
	}
	for i := range cyclesUsed {
		c, err := r.Uint64()
		if err != nil {
			return h, err
		}
		cyclesUsed[i] = c
	}
	proposer, err := r.Fixed(AddressLength)
	if err != nil {
		return h, err
	}
	proofBytes, err := r.Bytes()
	if err != nil {
		return h, err
	}
	proof, err := DecodeProof(proofBytes)
	if err != nil {
		return h, err
	}
	validatorVersion, err := r.Uint64()
	if err != nil {
		return h, err
	}
	validatorCount, err := r.Uint32()
	if err != nil {
		return h, err
	}
	var validators []Validator
	if validatorCount > 0 {
		validators = make([]Validator, validatorCount)
	}
	for i := range validators {
		vb, err := r.Bytes()
		if err != nil {
			return h, err
		}
		v, err := DecodeValidator(vb)
		if err != nil {
			return h, err
		}
		validators[i] = v
	}
	if err := r.Done(); err != nil {
		return h, err
	}
	copy(h.ChainID[:], chainID)
	h.Height = height
	h.ExecHeight = execHeight
	copy(h.PrevHash[:], prevHash)
	h.Timestamp = timestamp
	copy(h.OrderRoot[:], orderRoot)
	copy(h.OrderSignedTxsHash[:], orderSignedTxsHash)
	h.ConfirmRoot = confirmRoot
	copy(h.StateRoot[:], stateRoot)
	h.ReceiptRoot = receiptRoot
	h.CyclesUsed = cyclesUsed
	copy(h.Proposer[:], proposer)
	h.Proof = proof
	h.ValidatorVersion = validatorVersion
	h.Validators = validators
	return h, nil
}

// EncodeFixed implements codec.FixedCodec for Block.
func (b Block) EncodeFixed() ([]byte, error) {
	headerBytes, err := b.Header.EncodeFixed()
	if err != nil {
		return nil, err
	}
	w := codec.NewWriter()
	w.PutBytes(headerBytes)
	w.PutUint32(uint32(len(b.OrderedTxHashes)))
	for _, h := range b.OrderedTxHashes {
		w.PutFixed(h[:])
	}
	return w.Bytes(), nil
}

// DecodeBlock parses bytes produced by Block.EncodeFixed.
func DecodeBlock(b []byte) (Block, error) {
	var blk Block
	r := codec.NewReader(b)
	headerBytes, err := r.Bytes()
	if err != nil {
		return blk, err
	}
	header, err := DecodeBlockHeader(headerBytes)
	if err != nil {
		return blk, err
	}
	count, err := r.Uint32()
	if err != nil {
		return blk, err
	}
	var hashes []Hash
	if count > 0 {
		hashes = make([]Hash, count)
	}
	for i := range hashes {
		hb, err := r.Fixed(HashLength)
		if err != nil {
			return blk, err
		}
		copy(hashes[i][:], hb)
	}
	if err := r.Done(); err != nil {
		return blk, err
	}
	blk.Header = header
	blk.OrderedTxHashes = hashes
	return blk, nil
}

// EncodeFixed implements codec.FixedCodec for Receipt.
func (r Receipt) EncodeFixed() ([]byte, error) {
	w := codec.NewWriter()
	w.PutFixed(r.StateRootAfter[:])
	w.PutUint64(r.BlockHeight)
	w.PutFixed(r.TxHash[:])
	w.PutUint64(r.CyclesUsed)
	w.PutUint32(uint32(len(r.Events)))
	for _, e := range r.Events {
		w.PutBytes([]byte(e.Service))
		w.PutBytes([]byte(e.Topic))
		w.PutBytes([]byte(e.Data))
	}
	w.PutBytes([]byte(r.Response.Service))
	w.PutBytes([]byte(r.Response.Method))
	w.PutBytes([]byte(r.Response.Ret))
	if r.Response.IsError {
		w.PutUint32(1)
	} else {
		w.PutUint32(0)
	}
	return w.Bytes(), nil
}

// DecodeReceipt parses bytes produced by Receipt.EncodeFixed.
func DecodeReceipt(b []byte) (Receipt, error) {
	var rcpt Receipt
	r := codec.NewReader(b)
	stateRoot, err := r.Fixed(HashLength)
	if err != nil {
		return rcpt, err
	}
	blockHeight, err := r.Uint64()
	if err != nil {
		return rcpt, err
	}
	txHash, err := r.Fixed(HashLength)
	if err != nil {
		return rcpt, err
	}
	cyclesUsed, err := r.Uint64()
	if err != nil {
		return rcpt, err
	}
	eventCount, err := r.Uint32()
	if err != nil {
		return rcpt, err
	}
	var events []Event
	if eventCount > 0 {
		events = make([]Event, eventCount)
	}
	for i := range events {
		svc, err := r.Bytes()
		if err != nil {
			return rcpt, err
		}
		topic, err := r.Bytes()
		if err != nil {
			return rcpt, err
		}
		data, err := r.Bytes()
		if err != nil {
			return rcpt, err
		}
		events[i] = Event{Service: string(svc), Topic: string(topic), Data: string(data)}
	}
	respService, err := r.Bytes()
	if err != nil {
		return rcpt, err
	}
	respMethod, err := r.Bytes()
	if err != nil {
		return rcpt, err
	}
	respRet, err := r.Bytes()
	if err != nil {
		return rcpt, err
	}
	respIsError, err := r.Uint32()
	if err != nil {
		return rcpt, err
	}
	if err := r.Done(); err != nil {
		return rcpt, err
	}
	copy(rcpt.StateRootAfter[:], stateRoot)
	rcpt.BlockHeight = blockHeight
	copy(rcpt.TxHash[:], txHash)
	rcpt.CyclesUsed = cyclesUsed
	rcpt.Events = events
	rcpt.Response = ServiceCallResponse{
		Service: string(respService),
		Method:  string(respMethod),
		Ret:     string(respRet),
		IsError: respIsError != 0,
	}
	return rcpt, nil
}
