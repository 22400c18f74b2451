package network

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// gradients holds one flat gradient slice per trainable param, keyed by the
// manifest name and laid out exactly like the param data.
type gradients map[string][]float64

func (n *Network) newGradients() gradients {
	g := make(gradients)
	for _, p := range n.params {
		if p.Trainable() {
			g[p.Spec.Name] = make([]float64, len(p.Data))
		}
	}
	return g
}

// matrix returns a gonum view over a two-dimensional gradient.
func (g gradients) matrix(p *Param) *mat.Dense {
	return mat.NewDense(p.Spec.Shape[0], p.Spec.Shape[1], g[p.Spec.Name])
}

// TrainBatch runs one forward/backward pass over a mini-batch and applies an
// optimizer step. Returns the mean cross-entropy loss of the batch.
func (n *Network) TrainBatch(sequences [][]int, labels []int, opt *Adam) float64 {
	batch := len(sequences)
	c := n.forward(sequences, true)

	var loss float64
	for b, label := range labels {
		loss += -math.Log(math.Max(c.probs.At(b, label), 1e-12))
	}
	loss /= float64(batch)

	grads := n.newGradients()
	n.backward(c, labels, grads)
	opt.Step(n, grads)
	return loss
}

// backward computes gradients for every trainable param from the cached
// forward pass. Softmax and cross-entropy combine into probs minus one-hot.
func (n *Network) backward(c *forwardCache, labels []int, grads gradients) {
	batch := len(labels)
	invBatch := 1.0 / float64(batch)

	dLogits := mat.NewDense(batch, n.classes, nil)
	for b := 0; b < batch; b++ {
		row := dLogits.RawRowView(b)
		copy(row, c.probs.RawRowView(b))
		row[labels[b]] -= 1
		for j := range row {
			row[j] *= invBatch
		}
	}

	dBnOut := n.denseBackward(c.bnOut, dLogits, "output", grads)
	dBnIn := n.batchNormBackward(c, dBnOut, grads)

	dA2 := dropoutBackward(dBnIn, c.mask2)
	dZ2 := reluBackward(dA2, c.z2)
	dA1d := n.denseBackward(c.a1d, dZ2, "dense_2", grads)

	dA1 := dropoutBackward(dA1d, c.mask1)
	dZ1 := reluBackward(dA1, c.z1)
	dPooled := n.denseBackward(c.pooled, dZ1, "dense_1", grads)

	// Pooling distributed each position equally, so every position receives
	// the pooled gradient divided by the sequence length; forward units come
	// from the left half, backward units from the right.
	units := n.param("bi_rnn/forward/bias").Spec.Shape[0]
	inv := 1.0 / float64(n.seqLen)
	dhf := mat.NewDense(batch, units, nil)
	dhb := mat.NewDense(batch, units, nil)
	for b := 0; b < batch; b++ {
		for u := 0; u < units; u++ {
			dhf.Set(b, u, dPooled.At(b, u)*inv)
			dhb.Set(b, u, dPooled.At(b, units+u)*inv)
		}
	}

	dxs := make([]*mat.Dense, n.seqLen)
	embDim := n.param("embedding/embeddings").Spec.Shape[1]
	for t := range dxs {
		dxs[t] = mat.NewDense(batch, embDim, nil)
	}
	n.rnnBackward(c.xs, c.hf, dhf, "bi_rnn/forward", false, dxs, grads)
	n.rnnBackward(c.xs, c.hb, dhb, "bi_rnn/backward", true, dxs, grads)

	// Embedding: scatter-add each position's input gradient onto the row of
	// the token that produced it.
	gEmb := grads["embedding/embeddings"]
	for t := 0; t < n.seqLen; t++ {
		for b := 0; b < batch; b++ {
			row := gEmb[c.ids[b][t]*embDim : (c.ids[b][t]+1)*embDim]
			src := dxs[t].RawRowView(b)
			for j := range row {
				row[j] += src[j]
			}
		}
	}
}

// denseBackward accumulates kernel/bias gradients for the named dense layer
// and returns the gradient with respect to its input.
func (n *Network) denseBackward(input, dOut *mat.Dense, name string, grads gradients) *mat.Dense {
	kernel := n.param(name + "/kernel")
	var dKernel mat.Dense
	dKernel.Mul(input.T(), dOut)
	gk := grads.matrix(kernel)
	gk.Add(gk, &dKernel)

	gb := grads[name+"/bias"]
	rows, cols := dOut.Dims()
	for b := 0; b < rows; b++ {
		row := dOut.RawRowView(b)
		for j := 0; j < cols; j++ {
			gb[j] += row[j]
		}
	}

	var dIn mat.Dense
	dIn.Mul(dOut, kernel.Matrix().T())
	return &dIn
}

// batchNormBackward uses the batch statistics captured in the forward pass.
func (n *Network) batchNormBackward(c *forwardCache, dOut *mat.Dense, grads gradients) *mat.Dense {
	gamma := n.param("batch_norm/gamma").Data
	gGamma := grads["batch_norm/gamma"]
	gBeta := grads["batch_norm/beta"]

	rows, cols := dOut.Dims()
	dIn := mat.NewDense(rows, cols, nil)
	for j := 0; j < cols; j++ {
		var sumD, sumDX float64
		for b := 0; b < rows; b++ {
			dy := dOut.At(b, j)
			xh := c.xhat.At(b, j)
			gGamma[j] += dy * xh
			gBeta[j] += dy
			sumD += dy * gamma[j]
			sumDX += dy * gamma[j] * xh
		}
		invStd := 1.0 / math.Sqrt(c.bnVar[j]+bnEpsilon)
		scale := invStd / float64(rows)
		for b := 0; b < rows; b++ {
			dxhat := dOut.At(b, j) * gamma[j]
			dIn.Set(b, j, scale*(float64(rows)*dxhat-sumD-c.xhat.At(b, j)*sumDX))
		}
	}
	return dIn
}

// rnnBackward is backpropagation through time for one direction. dhPos is the
// per-position gradient flowing in from pooling (identical at each position);
// input gradients accumulate into dxs.
func (n *Network) rnnBackward(xs, hs []*mat.Dense, dhPos *mat.Dense, prefix string, reverse bool, dxs []*mat.Dense, grads gradients) {
	wxParam := n.param(prefix + "/kernel")
	whParam := n.param(prefix + "/recurrent_kernel")
	wx := wxParam.Matrix()
	wh := whParam.Matrix()
	gWx := grads.matrix(wxParam)
	gWh := grads.matrix(whParam)
	gBias := grads[prefix+"/bias"]

	batch, units := hs[0].Dims()
	carry := mat.NewDense(batch, units, nil)

	// Walk positions opposite to the scan order; the scan's previous state
	// for position t is hs[t-1] forward, hs[t+1] backward.
	for step := 0; step < n.seqLen; step++ {
		t := n.seqLen - 1 - step
		prevIdx := t - 1
		if reverse {
			t = step
			prevIdx = t + 1
		}

		da := mat.NewDense(batch, units, nil)
		for b := 0; b < batch; b++ {
			for u := 0; u < units; u++ {
				h := hs[t].At(b, u)
				da.Set(b, u, (dhPos.At(b, u)+carry.At(b, u))*(1-h*h))
			}
		}

		var tmp mat.Dense
		tmp.Mul(xs[t].T(), da)
		gWx.Add(gWx, &tmp)

		if prevIdx >= 0 && prevIdx < n.seqLen {
			var rec mat.Dense
			rec.Mul(hs[prevIdx].T(), da)
			gWh.Add(gWh, &rec)
		}

		for b := 0; b < batch; b++ {
			row := da.RawRowView(b)
			for u := 0; u < units; u++ {
				gBias[u] += row[u]
			}
		}

		var dx mat.Dense
		dx.Mul(da, wx.T())
		dxs[t].Add(dxs[t], &dx)

		var next mat.Dense
		next.Mul(da, wh.T())
		carry = mat.DenseCopyOf(&next)
	}
}

func dropoutBackward(dOut, mask *mat.Dense) *mat.Dense {
	if mask == nil {
		return dOut
	}
	rows, cols := dOut.Dims()
	dIn := mat.NewDense(rows, cols, nil)
	dIn.MulElem(dOut, mask)
	return dIn
}

func reluBackward(dOut, z *mat.Dense) *mat.Dense {
	rows, cols := dOut.Dims()
	dIn := mat.NewDense(rows, cols, nil)
	for b := 0; b < rows; b++ {
		for j := 0; j < cols; j++ {
			if z.At(b, j) > 0 {
				dIn.Set(b, j, dOut.At(b, j))
			}
		}
	}
	return dIn
}
