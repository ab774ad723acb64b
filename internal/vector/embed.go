package vector

import (
	"context"
	"hash/fnv"
	"math"
	"os"
	"strings"

	chromem "github.com/philippgille/chromem-go"
)

// localEmbeddingDim is the dimension of the offline trigram embedding.
const localEmbeddingDim = 256

// embeddingFunc selects the embedding provider for a collection.
func embeddingFunc(cfg Config) chromem.EmbeddingFunc {
	switch cfg.Provider {
	case "openai":
		return chromem.NewEmbeddingFuncOpenAI(os.Getenv("OPENAI_API_KEY"), chromem.EmbeddingModelOpenAI3Small)
	case "ollama":
		return chromem.NewEmbeddingFuncOllama(cfg.OllamaModel, "")
	default:
		return localEmbedding(localEmbeddingDim)
	}
}

// localEmbedding produces a deterministic bag-of-trigrams vector. It is not
// a semantic embedding, but shared character trigrams give related text a
// higher cosine similarity, which is enough for offline use and tests.
func localEmbedding(dim int) chromem.EmbeddingFunc {
	return func(_ context.Context, text string) ([]float32, error) {
		vec := make([]float32, dim)

		runes := []rune(strings.ToLower(text))
		for len(runes) < 3 {
			runes = append(runes, ' ')
		}
		for i := 0; i+3 <= len(runes); i++ {
			h := fnv.New32a()
			h.Write([]byte(string(runes[i : i+3])))
			vec[h.Sum32()%uint32(dim)]++
		}

		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		if norm == 0 {
			vec[0] = 1
			return vec, nil
		}
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
		return vec, nil
	}
}
