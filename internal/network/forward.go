package network

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/civicgo/kaiwa/pkg/utils"
)

// forwardCache holds every intermediate activation of one batch pass, kept
// for the backward pass.
type forwardCache struct {
	ids [][]int

	xs     []*mat.Dense // per position: batch x embedDim
	hf, hb []*mat.Dense // per position: batch x units, aligned to positions

	pooled *mat.Dense // batch x 2*units

	z1, a1, mask1 *mat.Dense
	a1d           *mat.Dense // dense_2 input: a1 after dropout
	z2, a2, mask2 *mat.Dense

	bnInput, xhat, bnOut *mat.Dense
	bnMean, bnVar        []float64

	probs *mat.Dense
}

// forward runs one batch through the network. In train mode dropout is
// applied and batch norm uses (and updates) batch statistics; otherwise
// dropout is identity and batch norm uses moving statistics.
func (n *Network) forward(ids [][]int, train bool) *forwardCache {
	batch := len(ids)
	c := &forwardCache{ids: ids}

	// Embedding lookup.
	emb := n.param("embedding/embeddings")
	embDim := emb.Spec.Shape[1]
	c.xs = make([]*mat.Dense, n.seqLen)
	for t := 0; t < n.seqLen; t++ {
		x := mat.NewDense(batch, embDim, nil)
		for b := 0; b < batch; b++ {
			row := emb.Data[ids[b][t]*embDim : (ids[b][t]+1)*embDim]
			x.SetRow(b, row)
		}
		c.xs[t] = x
	}

	// Bidirectional RNN, full sequence output.
	c.hf = n.rnnScan(c.xs, "bi_rnn/forward", false)
	c.hb = n.rnnScan(c.xs, "bi_rnn/backward", true)

	// Global average pooling over positions; forward and backward halves
	// concatenated per position before the average.
	units := n.param("bi_rnn/forward/bias").Spec.Shape[0]
	c.pooled = mat.NewDense(batch, 2*units, nil)
	inv := 1.0 / float64(n.seqLen)
	for t := 0; t < n.seqLen; t++ {
		for b := 0; b < batch; b++ {
			for u := 0; u < units; u++ {
				c.pooled.Set(b, u, c.pooled.At(b, u)+c.hf[t].At(b, u)*inv)
				c.pooled.Set(b, units+u, c.pooled.At(b, units+u)+c.hb[t].At(b, u)*inv)
			}
		}
	}

	c.z1 = n.dense(c.pooled, "dense_1")
	c.a1 = relu(c.z1)
	c.a1d = n.dropout(c.a1, n.dropRates[0], train, &c.mask1)

	c.z2 = n.dense(c.a1d, "dense_2")
	c.a2 = relu(c.z2)
	c.bnInput = n.dropout(c.a2, n.dropRates[1], train, &c.mask2)

	c.bnOut = n.batchNorm(c, train)

	logits := n.dense(c.bnOut, "output")
	c.probs = mat.NewDense(batch, n.classes, nil)
	for b := 0; b < batch; b++ {
		utils.Softmax(logits.RawRowView(b), c.probs.RawRowView(b))
	}
	return c
}

// rnnScan runs a simple tanh RNN over the positions, returning the hidden
// state per position (aligned to original positions for both directions).
func (n *Network) rnnScan(xs []*mat.Dense, prefix string, reverse bool) []*mat.Dense {
	wx := n.param(prefix + "/kernel").Matrix()
	wh := n.param(prefix + "/recurrent_kernel").Matrix()
	bias := n.param(prefix + "/bias").Data
	batch, _ := xs[0].Dims()
	units := len(bias)

	out := make([]*mat.Dense, n.seqLen)
	prev := mat.NewDense(batch, units, nil)
	for step := 0; step < n.seqLen; step++ {
		t := step
		if reverse {
			t = n.seqLen - 1 - step
		}
		var a, rec mat.Dense
		a.Mul(xs[t], wx)
		rec.Mul(prev, wh)
		a.Add(&a, &rec)
		h := mat.NewDense(batch, units, nil)
		for b := 0; b < batch; b++ {
			for u := 0; u < units; u++ {
				h.Set(b, u, math.Tanh(a.At(b, u)+bias[u]))
			}
		}
		out[t] = h
		prev = h
	}
	return out
}

// dense computes in·kernel + bias for the named dense layer.
func (n *Network) dense(in *mat.Dense, name string) *mat.Dense {
	kernel := n.param(name + "/kernel").Matrix()
	bias := n.param(name + "/bias").Data
	var z mat.Dense
	z.Mul(in, kernel)
	rows, cols := z.Dims()
	for b := 0; b < rows; b++ {
		row := z.RawRowView(b)
		for j := 0; j < cols; j++ {
			row[j] += bias[j]
		}
	}
	return &z
}

// dropout applies inverted dropout in train mode and stores the mask; in
// inference mode it returns the input unchanged.
func (n *Network) dropout(in *mat.Dense, rate float64, train bool, maskOut **mat.Dense) *mat.Dense {
	if !train || rate <= 0 {
		return in
	}
	rows, cols := in.Dims()
	mask := mat.NewDense(rows, cols, nil)
	out := mat.NewDense(rows, cols, nil)
	scale := 1.0 / (1.0 - rate)
	for b := 0; b < rows; b++ {
		for j := 0; j < cols; j++ {
			if n.rng.Float64() >= rate {
				mask.Set(b, j, scale)
				out.Set(b, j, in.At(b, j)*scale)
			}
		}
	}
	*maskOut = mask
	return out
}

// batchNorm normalizes c.bnInput per feature. Train mode uses batch
// statistics and folds them into the moving estimates; inference uses the
// moving estimates.
func (n *Network) batchNorm(c *forwardCache, train bool) *mat.Dense {
	gamma := n.param("batch_norm/gamma").Data
	beta := n.param("batch_norm/beta").Data
	movingMean := n.param("batch_norm/moving_mean").Data
	movingVar := n.param("batch_norm/moving_variance").Data

	rows, cols := c.bnInput.Dims()
	mean := make([]float64, cols)
	variance := make([]float64, cols)
	if train {
		for j := 0; j < cols; j++ {
			var m float64
			for b := 0; b < rows; b++ {
				m += c.bnInput.At(b, j)
			}
			m /= float64(rows)
			var v float64
			for b := 0; b < rows; b++ {
				d := c.bnInput.At(b, j) - m
				v += d * d
			}
			v /= float64(rows)
			mean[j], variance[j] = m, v
			movingMean[j] = bnMomentum*movingMean[j] + (1-bnMomentum)*m
			movingVar[j] = bnMomentum*movingVar[j] + (1-bnMomentum)*v
		}
	} else {
		copy(mean, movingMean)
		copy(variance, movingVar)
	}
	c.bnMean, c.bnVar = mean, variance

	c.xhat = mat.NewDense(rows, cols, nil)
	out := mat.NewDense(rows, cols, nil)
	for j := 0; j < cols; j++ {
		invStd := 1.0 / math.Sqrt(variance[j]+bnEpsilon)
		for b := 0; b < rows; b++ {
			xh := (c.bnInput.At(b, j) - mean[j]) * invStd
			c.xhat.Set(b, j, xh)
			out.Set(b, j, gamma[j]*xh+beta[j])
		}
	}
	return out
}

func relu(z *mat.Dense) *mat.Dense {
	rows, cols := z.Dims()
	out := mat.NewDense(rows, cols, nil)
	for b := 0; b < rows; b++ {
		for j := 0; j < cols; j++ {
			if v := z.At(b, j); v > 0 {
				out.Set(b, j, v)
			}
		}
	}
	return out
}

// Predict runs one encoded sequence through the network in inference mode and
// returns the softmax probabilities over intents.
func (n *Network) Predict(sequence []int) []float64 {
	c := n.forward([][]int{sequence}, false)
	out := make([]float64, n.classes)
	copy(out, c.probs.RawRowView(0))
	return out
}

// Evaluate computes mean cross-entropy loss and accuracy over the given set
// in inference mode.
func (n *Network) Evaluate(sequences [][]int, labels []int) (loss, accuracy float64) {
	if len(sequences) == 0 {
		return 0, 0
	}
	c := n.forward(sequences, false)
	var correct int
	for b, label := range labels {
		row := c.probs.RawRowView(b)
		loss += -math.Log(math.Max(row[label], 1e-12))
		if utils.Argmax(row) == label {
			correct++
		}
	}
	return loss / float64(len(sequences)), float64(correct) / float64(len(sequences))
}
